package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/internal/httputil"
	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/schema"
)

// ReasonMissing is reported for a missing required request body.
const ReasonMissing = "is missing"

// InvalidRequestBodyType is the type of the default invalid body response.
const InvalidRequestBodyType = "invalid-requestBody"

// FormatRequestBodyError is the default ErrorFormatter of RequestBody: 400
// with an application/json {type, message} content.
func FormatRequestBodyError(_ context.Context, err error, _ *execution.OperationInfo) (*execution.Response, error) {
	var berr *oaserrors.RequestBodyError
	if !errors.As(err, &berr) {
		return nil, err
	}
	return execution.JSON(400, map[string]any{
		"type":    InvalidRequestBodyType,
		"message": berr.Message(),
	}), nil
}

// RequestBody validates and coerces the request body against the content
// declared for its media type. The declared media type matching the request
// with the highest specificity is used: text/plain over text/* over */*.
// Bodies of operations declaring no request body are discarded.
func RequestBody(opts ...ValidationOption) Func {
	v := newValidator(opts, FormatRequestBodyError)

	return func(ctx context.Context, next execution.Handler, args execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		st := v.state(info.Document)

		rb, err := st.refs.RequestBody(ctx, info.Operation.RequestBody)
		if err != nil {
			return nil, fmt.Errorf("request body: %w", err)
		}
		if rb == nil || len(rb.Content) == 0 {
			return next(ctx, args, nil, info)
		}

		if body == nil {
			if rb.Required {
				return v.fail(ctx, &oaserrors.RequestBodyError{Reasons: []string{ReasonMissing}}, info)
			}
			return next(ctx, args, nil, info)
		}

		var mediaType string
		if info.Request != nil && info.Request.Body != nil {
			mediaType = info.Request.Body.MediaType
		}
		keys := maputil.SortedKeys(rb.Content)
		matched, ok := httputil.BestMatch(mediaType, keys)
		if !ok {
			reason := fmt.Sprintf("Media type %s is not acceptable", mediaType)
			return v.fail(ctx, &oaserrors.RequestBodyError{Reasons: []string{reason}}, info)
		}

		content := rb.Content[matched]
		if content == nil || content.Schema == nil {
			return next(ctx, args, body, info)
		}
		s, err := st.refs.Schema(ctx, content.Schema)
		if err != nil {
			return nil, fmt.Errorf("request body %s: %w", matched, err)
		}
		res, err := st.schemas.Validate(ctx, s, body)
		if err != nil {
			return nil, fmt.Errorf("request body %s: %w", matched, err)
		}
		if !res.Valid {
			return v.fail(ctx, &oaserrors.RequestBodyError{Reasons: bodyReasons(res.Errors)}, info)
		}
		return next(ctx, args, res.Data, info)
	}
}

// bodyReasons renders errors as "<instance path> <message>", the root
// being rendered as "/".
func bodyReasons(errs []schema.Error) []string {
	reasons := make([]string, len(errs))
	for i, e := range errs {
		path := e.InstancePath
		if path == "" {
			path = "/"
		}
		reasons[i] = path + " " + e.Message
	}
	return reasons
}
