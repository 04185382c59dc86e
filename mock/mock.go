// Package mock answers operations with the responses their document
// declares.
//
// The mock [Handler] is meant to be registered as the default handler of a
// HandlersMap: every operation without a handler of its own answers with
// its first declared success response (the lowest 2xx code, then
// "default"). Content is filled, for each media type, with the media type
// example, its first named example, or a value derived from its schema.
//
// Callers may pick another response with the Prefer request header:
//
//	Prefer: code=404
//	Prefer: example=cat
package mock

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/internal/httputil"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// PreferHeader is the request header read for response preferences.
const PreferHeader = "prefer"

// Option configures Handler.
type Option func(*mocker)

// WithResolver sets the resolver of response references. Default:
// resolver.NewLocal on the document of the operation
func WithResolver(r resolver.Resolver) Option {
	return func(m *mocker) { m.resolver = r }
}

// WithLogger sets the logger. Default: parser.NopLogger
func WithLogger(l parser.Logger) Option {
	return func(m *mocker) { m.logger = parser.OrNop(l) }
}

type mocker struct {
	resolver resolver.Resolver
	logger   parser.Logger
	refs     sync.Map // *parser.Document -> *resolver.Typed
}

// Handler returns a handler answering with the responses declared by the
// operation. Operations declaring neither a success nor a default response
// answer with a 501.
func Handler(opts ...Option) execution.Handler {
	m := &mocker{logger: parser.NopLogger{}}
	for _, opt := range opts {
		opt(m)
	}
	return m.handle
}

func (m *mocker) typed(doc *parser.Document) *resolver.Typed {
	if v, ok := m.refs.Load(doc); ok {
		return v.(*resolver.Typed)
	}
	r := m.resolver
	if r == nil {
		r = resolver.NewLocal(doc)
	}
	v, _ := m.refs.LoadOrStore(doc, resolver.NewTyped(r))
	return v.(*resolver.Typed)
}

func (m *mocker) handle(ctx context.Context, _ execution.Parameters, _ any, info *execution.OperationInfo) (*execution.Response, error) {
	if info.Operation == nil || info.Document == nil {
		return &execution.Response{Status: http.StatusNotImplemented}, nil
	}
	refs := m.typed(info.Document)
	pref := preferences(info.Request)

	code, declared := pick(info.Operation.Responses, pref.code)
	if declared == nil {
		m.logger.Debug("no response to mock", "path", info.Path, "method", info.Method.String())
		return &execution.Response{Status: http.StatusNotImplemented}, nil
	}
	declared, err := refs.Response(ctx, declared)
	if err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}

	resp := &execution.Response{Status: httputil.StatusFromCode(code, http.StatusOK)}
	if len(declared.Headers) > 0 {
		resp.Headers = make(map[string]string, len(declared.Headers))
		for name, h := range declared.Headers {
			if h == nil {
				continue
			}
			s := newSampler(refs)
			value := h.Example
			if value == nil && h.Schema != nil {
				if value, err = s.sample(ctx, h.Schema); err != nil {
					return nil, fmt.Errorf("mock: header %s: %w", name, err)
				}
			}
			if value != nil {
				resp.Headers[name] = fmt.Sprint(value)
			}
		}
	}

	for mediaType, mt := range declared.Content {
		value, err := newSampler(refs).mediaType(ctx, mt, pref.example)
		if err != nil {
			return nil, fmt.Errorf("mock: %s: %w", mediaType, err)
		}
		if value == nil {
			continue
		}
		if resp.Content == nil {
			resp.Content = make(map[string]any, len(declared.Content))
		}
		resp.Content[mediaType] = value
	}
	return resp, nil
}

// pick returns the response to mock: the preferred code when declared,
// otherwise the lowest success code, then default.
func pick(responses *parser.Responses, preferred string) (string, *parser.Response) {
	if responses == nil {
		return "", nil
	}
	if preferred != "" {
		if r, ok := responses.Codes[preferred]; ok {
			return preferred, r
		}
		if r, ok := responses.Codes[preferred[:1]+"XX"]; ok && len(preferred) == 3 {
			return preferred, r
		}
	}

	codes := make([]string, 0, len(responses.Codes))
	for code := range responses.Codes {
		if httputil.IsSuccessCode(strings.ToUpper(code)) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	if len(codes) > 0 {
		return codes[0], responses.Codes[codes[0]]
	}
	if responses.Default != nil {
		return "default", responses.Default
	}
	return "", nil
}

type preference struct {
	code    string
	example string
}

// preferences reads "code" and "example" from the Prefer header, e.g.
// "code=404, example=missing".
func preferences(req *execution.Request) preference {
	var p preference
	if req == nil {
		return p
	}
	for _, part := range strings.Split(req.Headers[PreferHeader], ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "code":
			p.code = value
		case "example":
			p.example = value
		}
	}
	return p
}
