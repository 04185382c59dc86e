package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/params"
	"github.com/alexstrat/executable-openapi/parser"
)

// ReasonRequired is reported for a missing required parameter.
const ReasonRequired = "is required"

// FormatParameterError is the default ErrorFormatter of the parameter
// middlewares: 400 with an application/json {in, name, message} content.
func FormatParameterError(_ context.Context, err error, _ *execution.OperationInfo) (*execution.Response, error) {
	var perr *oaserrors.ParameterError
	if !errors.As(err, &perr) {
		return nil, err
	}
	return execution.JSON(400, map[string]any{
		"in":      perr.In,
		"name":    perr.Name,
		"message": perr.Message(),
	}), nil
}

// PathParameters validates and coerces the path parameters of the request
// against their declarations. Path parameters are always required. Only
// declared parameters are handed to the next handler.
func PathParameters(opts ...ValidationOption) Func {
	v := newValidator(opts, FormatParameterError)

	return func(ctx context.Context, next execution.Handler, args execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		specs, st, err := v.parameters(ctx, info, parser.ParameterInPath)
		if err != nil {
			return nil, err
		}

		out := make(map[string]any, len(specs))
		for _, p := range specs {
			value, found := args.Path[p.Name]
			if !found {
				return v.fail(ctx, paramError(p, ReasonRequired), info)
			}
			coerced, perr, err := v.check(ctx, st, p, value)
			if err != nil {
				return nil, err
			}
			if perr != nil {
				return v.fail(ctx, perr, info)
			}
			out[p.Name] = coerced
		}

		args.Path = out
		return next(ctx, args, body, info)
	}
}

// QueryParameters validates and coerces the query parameters of the
// request against their declarations. An empty value of a parameter
// allowing empty values becomes true. Missing optional parameters get
// their schema default, if any. Only declared parameters are handed to the
// next handler.
func QueryParameters(opts ...ValidationOption) Func {
	v := newValidator(opts, FormatParameterError)

	return func(ctx context.Context, next execution.Handler, args execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		specs, st, err := v.parameters(ctx, info, parser.ParameterInQuery)
		if err != nil {
			return nil, err
		}

		out := make(map[string]any, len(specs))
		for _, p := range specs {
			value, found := args.Query[p.Name]
			if found && p.AllowEmptyValue && value == "" {
				value = true
			}
			if !found {
				if p.Required {
					return v.fail(ctx, paramError(p, ReasonRequired), info)
				}
				s, err := st.refs.Schema(ctx, p.Schema)
				if err != nil {
					return nil, fmt.Errorf("query parameter %s: %w", p.Name, err)
				}
				if s == nil || s.Default == nil {
					continue
				}
				value = s.Default
			}
			coerced, perr, err := v.check(ctx, st, p, value)
			if err != nil {
				return nil, err
			}
			if perr != nil {
				return v.fail(ctx, perr, info)
			}
			out[p.Name] = coerced
		}

		args.Query = out
		return next(ctx, args, body, info)
	}
}

// parameters returns the declarations of the operation in location in.
func (v *validator) parameters(ctx context.Context, info *execution.OperationInfo, in string) ([]*parser.Parameter, *docState, error) {
	st := v.state(info.Document)
	specs, err := params.Resolve(ctx, st.refs, info.PathItem, info.Operation)
	if err != nil {
		return nil, nil, fmt.Errorf("%s parameters: %w", in, err)
	}
	specs = params.Filter(specs, in)
	for _, p := range specs {
		if err := params.CheckStyle(p); err != nil {
			return nil, nil, err
		}
	}
	return specs, st, nil
}

// check deserializes value and validates it against the schema of p.
// Errors other than the ParameterError are fatal.
func (v *validator) check(ctx context.Context, st *docState, p *parser.Parameter, value any) (any, *oaserrors.ParameterError, error) {
	s, err := st.refs.Schema(ctx, p.Schema)
	if err != nil {
		return nil, nil, fmt.Errorf("%s parameter %s: %w", p.In, p.Name, err)
	}
	if raw, ok := value.(string); ok {
		value = params.Deserialize(p, s, raw)
	}
	if s == nil {
		return value, nil, nil
	}

	res, err := st.schemas.Validate(ctx, s, value)
	if err != nil {
		return nil, nil, fmt.Errorf("%s parameter %s: %w", p.In, p.Name, err)
	}
	if !res.Valid {
		return nil, &oaserrors.ParameterError{In: p.In, Name: p.Name, Reasons: res.Messages()}, nil
	}
	return res.Data, nil, nil
}

func paramError(p *parser.Parameter, reason string) *oaserrors.ParameterError {
	return &oaserrors.ParameterError{In: p.In, Name: p.Name, Reasons: []string{reason}}
}
