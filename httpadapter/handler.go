package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/parser"
)

// Handler serves an execution.Executor over HTTP.
type Handler struct {
	executor    execution.Executor
	contextFn   ContextFunc
	schemes     map[string]SecuritySchemeFunc
	formatters  map[string]Formatter
	next        http.Handler
	logger      parser.Logger
	maxBodySize int64
}

// New returns a Handler executing requests with executor.
func New(executor execution.Executor, opts ...Option) *Handler {
	h := &Handler{
		executor:    executor,
		schemes:     make(map[string]SecuritySchemeFunc),
		formatters:  defaultFormatters(),
		next:        http.NotFoundHandler(),
		logger:      parser.NopLogger{},
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler. Requests with a method no operation
// can be declared for, and requests not targeting an operation, are passed
// to the next handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method, ok := execution.ParseMethod(r.Method)
	if !ok {
		h.next.ServeHTTP(w, r)
		return
	}

	ctx := r.Context()
	if h.contextFn != nil {
		var err error
		if ctx, err = h.contextFn(r); err != nil {
			h.fail(w, r, "resolving execution context", err)
			return
		}
	}

	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	logger := h.logger.With("request_id", id, "method", method.String(), "path", r.URL.Path)

	securities, err := h.authenticate(ctx, r)
	if err != nil {
		h.fail(w, r, "authenticating request", err)
		return
	}

	body, err := h.readBody(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := &execution.Request{
		ID:         id,
		Path:       r.URL.Path,
		Method:     method,
		Query:      firstValues(r.URL.Query()),
		Headers:    headers(r.Header),
		Body:       body,
		Securities: securities,
	}

	resp, err := h.executor.Execute(ctx, req)
	if err != nil {
		h.fail(w, r, "executing request", err)
		return
	}
	if resp == nil {
		logger.Debug("request not in service")
		h.next.ServeHTTP(w, r)
		return
	}

	w.Header().Set(RequestIDHeader, id)
	h.write(w, r, resp)
	logger.Debug("request executed", "status", resp.Status)
}

// authenticate runs the security scheme functions concurrently.
func (h *Handler) authenticate(ctx context.Context, r *http.Request) (map[string]execution.Security, error) {
	type outcome struct {
		name     string
		security execution.Security
	}

	p := pool.NewWithResults[outcome]().WithErrors().WithContext(ctx)
	for name, fn := range h.schemes {
		p.Go(func(ctx context.Context) (outcome, error) {
			sec, err := fn(ctx, r)
			if err != nil {
				return outcome{}, fmt.Errorf("security scheme %s: %w", name, err)
			}
			return outcome{name: name, security: sec}, nil
		})
	}
	outcomes, err := p.Wait()
	if err != nil {
		return nil, err
	}

	securities := make(map[string]execution.Security, len(outcomes))
	for _, o := range outcomes {
		securities[o.name] = o.security
	}
	return securities, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

// readBody decodes the request body according to its Content-Type.
func (h *Handler) readBody(r *http.Request) (*execution.Body, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" || r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(data)) > h.maxBodySize {
		return nil, &http.MaxBytesError{Limit: h.maxBodySize}
	}
	if len(data) == 0 {
		return nil, nil
	}
	content, err := decodeBody(contentType, data)
	if err != nil {
		return nil, err
	}
	return &execution.Body{MediaType: contentType, Content: content}, nil
}
