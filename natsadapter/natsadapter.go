// Package natsadapter serves an executable OpenAPI document over NATS
// request/reply.
//
// Requests are JSON envelopes mirroring execution.Request:
//
//	{"path": "/users/3", "method": "get", "query": {"verbose": ""},
//	 "body": {"mediaType": "application/json", "content": {...}},
//	 "securities": {"apiKey": {"granted": true}}}
//
// Replies are JSON envelopes carrying the execution response
// ({"status", "headers", "content"}), {"notFound": true} when the request
// does not target an operation, or {"error": "..."} when it can not be
// executed. The caller is trusted to have authenticated the request: the
// securities of the envelope are used as is.
package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/parser"
)

// DefaultQueueGroup is the queue group Serve subscribes with.
const DefaultQueueGroup = "executable-openapi"

// Reply is the envelope sent back for every request.
type Reply struct {
	ID       string            `json:"id,omitempty"`
	Status   int               `json:"status,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Content  map[string]any    `json:"content,omitempty"`
	NotFound bool              `json:"notFound,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Default: parser.NopLogger
func WithLogger(l parser.Logger) Option {
	return func(h *Handler) { h.logger = parser.OrNop(l) }
}

// WithTimeout bounds the execution of each request. Default: no timeout
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithQueueGroup sets the queue group of Serve. Default: DefaultQueueGroup
func WithQueueGroup(name string) Option {
	return func(h *Handler) { h.queue = name }
}

// Handler executes request envelopes.
type Handler struct {
	executor execution.Executor
	logger   parser.Logger
	timeout  time.Duration
	queue    string
}

// NewHandler returns a Handler executing requests with executor.
func NewHandler(executor execution.Executor, opts ...Option) *Handler {
	h := &Handler{
		executor: executor,
		logger:   parser.NopLogger{},
		queue:    DefaultQueueGroup,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes a request envelope, executes it and returns the reply.
func (h *Handler) Handle(ctx context.Context, data []byte) Reply {
	var req execution.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Reply{Error: fmt.Sprintf("invalid request envelope: %v", err)}
	}
	method, ok := execution.ParseMethod(string(req.Method))
	if !ok {
		return Reply{ID: req.ID, NotFound: true}
	}
	req.Method = method
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.executor.Execute(ctx, &req)
	if err != nil {
		h.logger.Error("executing request", "request_id", req.ID, "path", req.Path, "error", err)
		return Reply{ID: req.ID, Error: err.Error()}
	}
	if resp == nil {
		return Reply{ID: req.ID, NotFound: true}
	}
	return Reply{ID: req.ID, Status: resp.Status, Headers: resp.Headers, Content: resp.Content}
}

// ServeMsg handles msg and responds to it.
func (h *Handler) ServeMsg(ctx context.Context, msg *nats.Msg) {
	reply := h.Handle(ctx, msg.Data)
	data, err := json.Marshal(reply)
	if err != nil {
		h.logger.Error("encoding reply", "request_id", reply.ID, "error", err)
		data, _ = json.Marshal(Reply{ID: reply.ID, Error: "encoding reply: " + err.Error()})
	}
	if err := msg.Respond(data); err != nil {
		h.logger.Error("sending reply", "request_id", reply.ID, "error", err)
	}
}

// Serve subscribes to subject in the queue group of h and serves requests
// until ctx is done, then drains the subscription.
func (h *Handler) Serve(ctx context.Context, nc *nats.Conn, subject string) error {
	sub, err := nc.QueueSubscribe(subject, h.queue, func(msg *nats.Msg) {
		h.ServeMsg(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("natsadapter: subscribing to %s: %w", subject, err)
	}
	h.logger.Info("serving requests", "subject", subject, "queue", h.queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("natsadapter: draining %s: %w", subject, err)
	}
	return nil
}

// Serve is a shorthand for NewHandler(executor, opts...).Serve(ctx, nc, subject).
func Serve(ctx context.Context, nc *nats.Conn, subject string, executor execution.Executor, opts ...Option) error {
	return NewHandler(executor, opts...).Serve(ctx, nc, subject)
}

// Request sends req to subject and waits for the reply. It is the client
// side of Serve.
func Request(ctx context.Context, nc *nats.Conn, subject string, req *execution.Request) (*Reply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("natsadapter: encoding request: %w", err)
	}
	msg, err := nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("natsadapter: requesting %s: %w", subject, err)
	}
	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("natsadapter: decoding reply: %w", err)
	}
	return &reply, nil
}
