package middleware

import (
	"context"
	"strings"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/parser"
)

// Reasons recorded per security scheme by EvaluateSecurity.
const (
	ReasonNotAuthorized = "required but request not authorized"
	reasonMissingScopes = "required scopes are missing: "
)

// ForbiddenResponse builds the response of a request failing every security
// requirement set. schemeResults maps scheme names to failure reasons.
type ForbiddenResponse func(ctx context.Context, schemeResults map[string]string, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error)

// SecurityOption configures the Security middleware.
type SecurityOption func(*securityConfig)

type securityConfig struct {
	forbidden ForbiddenResponse
}

// WithForbiddenResponse replaces the default bare 403 response.
func WithForbiddenResponse(fn ForbiddenResponse) SecurityOption {
	return func(c *securityConfig) {
		c.forbidden = fn
	}
}

func defaultForbidden(context.Context, map[string]string, execution.Parameters, any, *execution.OperationInfo) (*execution.Response, error) {
	return &execution.Response{Status: 403}, nil
}

// Security checks the security requirements of the operation against the
// securities of the request. The operation requirement replaces the
// document one when declared.
func Security(opts ...SecurityOption) Func {
	cfg := securityConfig{forbidden: defaultForbidden}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		var securities map[string]execution.Security
		if info.Request != nil {
			securities = info.Request.Securities
		}
		ok, results := EvaluateSecurity(effectiveSecurity(info), securities)
		if ok {
			return next(ctx, params, body, info)
		}
		return cfg.forbidden(ctx, results, params, body, info)
	}
}

func effectiveSecurity(info *execution.OperationInfo) []parser.SecurityRequirement {
	if info.Operation != nil && info.Operation.Security != nil {
		return info.Operation.Security
	}
	if info.Document != nil {
		return info.Document.Security
	}
	return nil
}

// EvaluateSecurity reports whether securities satisfy one of the
// requirement sets. A nil or empty requirement list is satisfied, as is an
// empty set. Within a set, schemes are checked in name order and the first
// failing one is recorded in the returned map, which accumulates across sets.
func EvaluateSecurity(requirements []parser.SecurityRequirement, securities map[string]execution.Security) (bool, map[string]string) {
	results := make(map[string]string)
	if len(requirements) == 0 {
		return true, results
	}

	for _, set := range requirements {
		if satisfies(set, securities, results) {
			return true, results
		}
	}
	return false, results
}

func satisfies(set parser.SecurityRequirement, securities map[string]execution.Security, results map[string]string) bool {
	names := maputil.SortedKeys(set)

	for _, name := range names {
		sec, found := securities[name]
		if !found || !sec.Granted {
			results[name] = ReasonNotAuthorized
			return false
		}
		if missing := missingScopes(set[name], sec.Scopes); len(missing) > 0 {
			results[name] = reasonMissingScopes + strings.Join(missing, ",")
			return false
		}
	}
	return true
}

func missingScopes(required, granted []string) []string {
	if len(required) == 0 {
		return nil
	}
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}
	var missing []string
	for _, s := range required {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
