//go:build integration

package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/httpadapter"
	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/natsadapter"
)

// Transport names.
const (
	TransportExecutor = "executor"
	TransportHTTP     = "http"
	TransportNATS     = "nats"
)

// GrantHeader prefixes the headers granting a security scheme over HTTP:
// "X-Grant-<scheme>: granted [scope...]".
const GrantHeader = "X-Grant-"

// Result is the outcome of a request, whatever the transport.
type Result struct {
	NotFound bool
	Status   int
	Headers  map[string]string
	// Body is the encoded response content, nil when there is none
	Body []byte
}

// Transport sends scenario requests to an executable document.
type Transport interface {
	Name() string
	Do(ctx context.Context, req *Request) (*Result, error)
}

// NewTransports returns the named transports serving exe, or all of them
// when names is empty. Servers are closed with t.
func NewTransports(t *testing.T, exe *executableopenapi.Executable, names []string) ([]Transport, error) {
	if len(names) == 0 {
		names = []string{TransportExecutor, TransportHTTP, TransportNATS}
	}
	out := make([]Transport, 0, len(names))
	for _, name := range names {
		switch name {
		case TransportExecutor:
			out = append(out, &executorTransport{exe: exe})
		case TransportHTTP:
			out = append(out, newHTTPTransport(t, exe))
		case TransportNATS:
			out = append(out, &natsTransport{h: natsadapter.NewHandler(exe)})
		default:
			return nil, fmt.Errorf("unknown transport %q", name)
		}
	}
	return out, nil
}

// envelope builds the execution request of req. The body goes through JSON
// as it would on the wire.
func envelope(req *Request) (*execution.Request, error) {
	method, ok := execution.ParseMethod(req.Method)
	if !ok {
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}
	out := &execution.Request{Method: method, Path: req.Path, Query: req.Query}
	if len(req.Headers) > 0 {
		out.Headers = make(map[string]string, len(req.Headers))
		for name, value := range req.Headers {
			out.Headers[strings.ToLower(name)] = value
		}
	}
	if req.Body != nil {
		content, err := roundTrip(req.Body)
		if err != nil {
			return nil, err
		}
		out.Body = &execution.Body{MediaType: mediaType(req), Content: content}
	}
	if len(req.Grants) > 0 {
		out.Securities = make(map[string]execution.Security, len(req.Grants))
		for name, scopes := range req.Grants {
			out.Securities[name] = execution.Granted(scopes...)
		}
	}
	return out, nil
}

func mediaType(req *Request) string {
	if req.MediaType != "" {
		return req.MediaType
	}
	return "application/json"
}

func roundTrip(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	return out, nil
}

// encodeContent encodes the JSON content of a response, or its first media
// type in lexical order.
func encodeContent(content map[string]any) ([]byte, error) {
	if len(content) == 0 {
		return nil, nil
	}
	value, ok := content["application/json"]
	if !ok {
		value = content[maputil.SortedKeys(content)[0]]
	}
	return json.Marshal(value)
}

// =============================================================================
// executor
// =============================================================================

type executorTransport struct {
	exe execution.Executor
}

func (*executorTransport) Name() string { return TransportExecutor }

func (e *executorTransport) Do(ctx context.Context, req *Request) (*Result, error) {
	in, err := envelope(req)
	if err != nil {
		return nil, err
	}
	resp, err := e.exe.Execute(ctx, in)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &Result{NotFound: true}, nil
	}
	body, err := encodeContent(resp.Content)
	if err != nil {
		return nil, err
	}
	return &Result{Status: resp.Status, Headers: resp.Headers, Body: body}, nil
}

// =============================================================================
// http
// =============================================================================

type httpTransport struct {
	srv *httptest.Server
}

func newHTTPTransport(t *testing.T, exe *executableopenapi.Executable) *httpTransport {
	var opts []httpadapter.Option
	if doc := exe.Document(); doc.Components != nil {
		for name := range doc.Components.SecuritySchemes {
			opts = append(opts, httpadapter.WithSecurityScheme(name, grantFromHeader(name)))
		}
	}
	srv := httptest.NewServer(httpadapter.New(exe, opts...))
	t.Cleanup(srv.Close)
	return &httpTransport{srv: srv}
}

// grantFromHeader authenticates scheme from its grant header.
func grantFromHeader(scheme string) httpadapter.SecuritySchemeFunc {
	return func(_ context.Context, r *http.Request) (execution.Security, error) {
		fields := strings.Fields(r.Header.Get(GrantHeader + scheme))
		if len(fields) == 0 {
			return execution.Security{}, nil
		}
		return execution.Granted(fields[1:]...), nil
	}
}

func (*httpTransport) Name() string { return TransportHTTP }

func (h *httpTransport) Do(ctx context.Context, req *Request) (*Result, error) {
	target := h.srv.URL + req.Path
	if len(req.Query) > 0 {
		q := make(url.Values, len(req.Query))
		for name, value := range req.Query {
			q.Set(name, value)
		}
		target += "?" + q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	hreq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		hreq.Header.Set("Content-Type", mediaType(req))
	}
	for name, value := range req.Headers {
		hreq.Header.Set(name, value)
	}
	for name, scopes := range req.Grants {
		hreq.Header.Set(GrantHeader+name, strings.Join(append([]string{"granted"}, scopes...), " "))
	}

	resp, err := h.srv.Client().Do(hreq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Executed responses carry a request ID; the others come from the
	// not found fallback.
	if resp.Header.Get(httpadapter.RequestIDHeader) == "" {
		return &Result{NotFound: resp.StatusCode == http.StatusNotFound, Status: resp.StatusCode}, nil
	}
	out := &Result{Status: resp.StatusCode, Headers: make(map[string]string, len(resp.Header))}
	for name := range resp.Header {
		out.Headers[name] = resp.Header.Get(name)
	}
	if len(data) > 0 {
		out.Body = data
	}
	return out, nil
}

// =============================================================================
// nats
// =============================================================================

// natsTransport exercises the NATS request envelope without a server.
type natsTransport struct {
	h *natsadapter.Handler
}

func (*natsTransport) Name() string { return TransportNATS }

func (n *natsTransport) Do(ctx context.Context, req *Request) (*Result, error) {
	in, err := envelope(req)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	reply := n.h.Handle(ctx, data)
	if reply.Error != "" {
		return nil, fmt.Errorf("nats: %s", reply.Error)
	}
	if reply.NotFound {
		return &Result{NotFound: true}, nil
	}
	body, err := encodeContent(reply.Content)
	if err != nil {
		return nil, err
	}
	return &Result{Status: reply.Status, Headers: reply.Headers, Body: body}, nil
}
