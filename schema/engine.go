package schema

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// Engine is the default Compiler. Its error messages follow the wording of
// the ajv JSON Schema validator ("must be integer", "must be >= 1").
type Engine struct {
	coerce           bool
	defaults         bool
	removeAdditional bool
	allErrors        bool
	formats          map[string]Format
	refs             *resolver.Typed
}

// Option configures an Engine.
type Option func(*Engine)

// WithCoercion enables or disables type coercion. Default: enabled.
func WithCoercion(enabled bool) Option {
	return func(e *Engine) { e.coerce = enabled }
}

// WithDefaults enables or disables filling missing properties from their
// schema default. Default: enabled.
func WithDefaults(enabled bool) Option {
	return func(e *Engine) { e.defaults = enabled }
}

// WithRemoveAdditional enables or disables the removal of properties not
// allowed by "additionalProperties: false". When disabled such properties
// are reported as errors. Default: enabled.
func WithRemoveAdditional(enabled bool) Option {
	return func(e *Engine) { e.removeAdditional = enabled }
}

// WithAllErrors makes validators report every failure instead of stopping
// at the first one.
func WithAllErrors(enabled bool) Option {
	return func(e *Engine) { e.allErrors = enabled }
}

// WithFormat registers or replaces a format.
func WithFormat(name string, f Format) Option {
	return func(e *Engine) { e.formats[name] = f }
}

// WithResolver sets the resolver used to follow $ref in schemas. Without a
// resolver, compiling a schema containing a $ref fails.
func WithResolver(r resolver.Resolver) Option {
	return func(e *Engine) {
		if r == nil {
			e.refs = nil
			return
		}
		e.refs = resolver.NewTyped(r)
	}
}

// NewEngine returns an Engine configured by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		coerce:           true,
		defaults:         true,
		removeAdditional: true,
		formats:          make(map[string]Format, len(builtinFormats)),
	}
	for name, f := range builtinFormats {
		e.formats[name] = f
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile implements Compiler. References and patterns are resolved and
// compiled eagerly, so a returned validator never fails on them.
func (e *Engine) Compile(ctx context.Context, s *parser.Schema) (Validator, error) {
	c := &compiled{
		engine:   e,
		root:     s,
		refs:     make(map[string]*parser.Schema),
		patterns: make(map[string]*regexp.Regexp),
	}
	if err := c.prepare(ctx, s, make(map[*parser.Schema]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

type compiled struct {
	engine   *Engine
	root     *parser.Schema
	refs     map[string]*parser.Schema
	patterns map[string]*regexp.Regexp
}

func (c *compiled) prepare(ctx context.Context, s *parser.Schema, seen map[*parser.Schema]bool) error {
	if s == nil || seen[s] {
		return nil
	}
	seen[s] = true

	if s.Ref != "" {
		if _, ok := c.refs[s.Ref]; !ok {
			if c.engine.refs == nil {
				return &oaserrors.ReferenceError{Ref: s.Ref, Message: "no resolver configured"}
			}
			target, err := c.engine.refs.Schema(ctx, &parser.Schema{Ref: s.Ref})
			if err != nil {
				return fmt.Errorf("schema: %w", err)
			}
			c.refs[s.Ref] = target
			if err := c.prepare(ctx, target, seen); err != nil {
				return err
			}
		}
	}

	if s.Pattern != "" {
		if _, ok := c.patterns[s.Pattern]; !ok {
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				return &oaserrors.ConfigError{Option: "pattern", Value: s.Pattern, Message: "invalid regular expression", Cause: err}
			}
			c.patterns[s.Pattern] = re
		}
	}

	children := make([]*parser.Schema, 0, len(s.Properties)+len(s.AllOf)+len(s.AnyOf)+len(s.OneOf)+3)
	children = append(children, s.Items, s.Not)
	if s.AdditionalProperties != nil {
		children = append(children, s.AdditionalProperties.Schema)
	}
	for _, p := range s.Properties {
		children = append(children, p)
	}
	children = append(children, s.AllOf...)
	children = append(children, s.AnyOf...)
	children = append(children, s.OneOf...)
	for _, child := range children {
		if err := c.prepare(ctx, child, seen); err != nil {
			return err
		}
	}
	return nil
}

// Validate implements Validator.
func (c *compiled) Validate(data any) Result {
	v := &validation{compiled: c}
	out := v.validate(c.root, deepCopy(data), "", "#", false)
	return Result{Valid: len(v.errs) == 0, Errors: v.errs, Data: out}
}

type validation struct {
	*compiled
	errs []Error
}

func (v *validation) fail(inst, schemaPath, keyword, msg string) {
	v.errs = append(v.errs, Error{InstancePath: inst, SchemaPath: schemaPath, Keyword: keyword, Message: msg})
}

func (v *validation) stop() bool {
	return !v.engine.allErrors && len(v.errs) > 0
}

// sub runs s against a copy of data with its own error list.
func (v *validation) sub(s *parser.Schema, data any, inst, sp string, coercible bool) (any, []Error) {
	w := &validation{compiled: v.compiled}
	out := w.validate(s, deepCopy(data), inst, sp, coercible)
	return out, w.errs
}

// validate checks data against s and returns data after coercion. Only
// values held by a parent container can be coerced (coercible).
func (v *validation) validate(s *parser.Schema, data any, inst, sp string, coercible bool) any {
	if s == nil {
		return data
	}

	if types := typesOf(s); len(types) > 0 && !matchesAny(data, types) {
		coerced, ok := any(nil), false
		if coercible && v.engine.coerce {
			coerced, ok = coerce(data, types)
		}
		if !ok {
			v.fail(inst, sp+"/type", "type", "must be "+strings.Join(s.Type, ","))
			return data
		}
		data = coerced
	}

	if s.Ref != "" {
		data = v.validate(v.refs[s.Ref], data, inst, s.Ref, coercible)
		if v.stop() {
			return data
		}
	}

	if s.Const != nil && !equal(data, s.Const) {
		v.fail(inst, sp+"/const", "const", "must be equal to constant")
		if v.stop() {
			return data
		}
	}
	if len(s.Enum) > 0 && !v.inEnum(data, s.Enum) {
		v.fail(inst, sp+"/enum", "enum", "must be equal to one of the allowed values")
		if v.stop() {
			return data
		}
	}

	if data = v.composition(s, data, inst, sp, coercible); v.stop() {
		return data
	}

	switch dataType(data) {
	case "number":
		v.validateNumber(s, data, inst, sp)
	case "string":
		v.validateString(s, data.(string), inst, sp)
	case "array":
		v.validateArray(s, data.([]any), inst, sp)
	case "object":
		v.validateObject(s, data.(map[string]any), inst, sp)
	}
	return data
}

// typesOf returns the accepted types, adding null for OAS 3.0 nullable.
func typesOf(s *parser.Schema) []string {
	if len(s.Type) == 0 {
		return nil
	}
	if s.Nullable && !s.Type.Includes("null") {
		return append(append([]string(nil), s.Type...), "null")
	}
	return s.Type
}

func matchesAny(data any, types []string) bool {
	for _, typ := range types {
		if hasType(data, typ) {
			return true
		}
	}
	return false
}

func (v *validation) inEnum(data any, enum []any) bool {
	for _, candidate := range enum {
		if equal(data, candidate) {
			return true
		}
	}
	return false
}

func (v *validation) composition(s *parser.Schema, data any, inst, sp string, coercible bool) any {
	if s.Not != nil {
		if _, errs := v.sub(s.Not, data, inst, sp+"/not", coercible); len(errs) == 0 {
			v.fail(inst, sp+"/not", "not", "must NOT be valid")
			if v.stop() {
				return data
			}
		}
	}

	if len(s.AnyOf) > 0 {
		var all []Error
		matched := false
		for i, branch := range s.AnyOf {
			out, errs := v.sub(branch, data, inst, sp+"/anyOf/"+strconv.Itoa(i), coercible)
			if len(errs) == 0 {
				data, matched = out, true
				break
			}
			all = append(all, errs...)
		}
		if !matched {
			v.errs = append(v.errs, all...)
			v.fail(inst, sp+"/anyOf", "anyOf", "must match a schema in anyOf")
			if v.stop() {
				return data
			}
		}
	}

	if len(s.OneOf) > 0 {
		var (
			all     []Error
			passing []int
			result  any
		)
		for i, branch := range s.OneOf {
			out, errs := v.sub(branch, data, inst, sp+"/oneOf/"+strconv.Itoa(i), coercible)
			if len(errs) == 0 {
				if len(passing) == 0 {
					result = out
				}
				passing = append(passing, i)
				continue
			}
			all = append(all, errs...)
		}
		switch len(passing) {
		case 1:
			data = result
		case 0:
			v.errs = append(v.errs, all...)
			fallthrough
		default:
			v.fail(inst, sp+"/oneOf", "oneOf", "must match exactly one schema in oneOf")
			if v.stop() {
				return data
			}
		}
	}

	for i, branch := range s.AllOf {
		data = v.validate(branch, data, inst, sp+"/allOf/"+strconv.Itoa(i), coercible)
		if v.stop() {
			return data
		}
	}
	return data
}

func (v *validation) validateNumber(s *parser.Schema, data any, inst, sp string) {
	n, _ := toFloat64(data)

	exclusiveMax, exclusiveMin := false, false
	if b, ok := s.ExclusiveMaximum.(bool); ok {
		exclusiveMax = b
	}
	if b, ok := s.ExclusiveMinimum.(bool); ok {
		exclusiveMin = b
	}

	type limit struct {
		keyword string
		bound   float64
		op      string
		ok      func(float64, float64) bool
	}
	var limits []limit
	if s.Maximum != nil {
		if exclusiveMax {
			limits = append(limits, limit{"maximum", *s.Maximum, "<", func(a, b float64) bool { return a < b }})
		} else {
			limits = append(limits, limit{"maximum", *s.Maximum, "<=", func(a, b float64) bool { return a <= b }})
		}
	}
	if s.Minimum != nil {
		if exclusiveMin {
			limits = append(limits, limit{"minimum", *s.Minimum, ">", func(a, b float64) bool { return a > b }})
		} else {
			limits = append(limits, limit{"minimum", *s.Minimum, ">=", func(a, b float64) bool { return a >= b }})
		}
	}
	if bound, ok := toFloat64(s.ExclusiveMaximum); ok {
		limits = append(limits, limit{"exclusiveMaximum", bound, "<", func(a, b float64) bool { return a < b }})
	}
	if bound, ok := toFloat64(s.ExclusiveMinimum); ok {
		limits = append(limits, limit{"exclusiveMinimum", bound, ">", func(a, b float64) bool { return a > b }})
	}

	for _, l := range limits {
		if !l.ok(n, l.bound) {
			v.fail(inst, sp+"/"+l.keyword, l.keyword, "must be "+l.op+" "+formatNumber(l.bound))
			if v.stop() {
				return
			}
		}
	}

	if s.MultipleOf != nil && *s.MultipleOf != 0 {
		// quotients within rounding error of an integer count as multiples
		q := n / *s.MultipleOf
		if math.IsInf(q, 0) || math.Abs(q-math.Round(q)) > 1e-9*math.Max(1, math.Abs(q)) {
			v.fail(inst, sp+"/multipleOf", "multipleOf", "must be multiple of "+formatNumber(*s.MultipleOf))
			if v.stop() {
				return
			}
		}
	}

	v.validateFormat(s, data, inst, sp)
}

func (v *validation) validateString(s *parser.Schema, data string, inst, sp string) {
	length := utf8.RuneCountInString(data)
	if s.MaxLength != nil && length > *s.MaxLength {
		v.fail(inst, sp+"/maxLength", "maxLength", fmt.Sprintf("must NOT have more than %d characters", *s.MaxLength))
		if v.stop() {
			return
		}
	}
	if s.MinLength != nil && length < *s.MinLength {
		v.fail(inst, sp+"/minLength", "minLength", fmt.Sprintf("must NOT have fewer than %d characters", *s.MinLength))
		if v.stop() {
			return
		}
	}
	if s.Pattern != "" && !v.patterns[s.Pattern].MatchString(data) {
		v.fail(inst, sp+"/pattern", "pattern", `must match pattern "`+s.Pattern+`"`)
		if v.stop() {
			return
		}
	}
	v.validateFormat(s, data, inst, sp)
}

func (v *validation) validateFormat(s *parser.Schema, data any, inst, sp string) {
	if s.Format == "" {
		return
	}
	check, ok := v.engine.formats[s.Format]
	if ok && !check(data) {
		v.fail(inst, sp+"/format", "format", `must match format "`+s.Format+`"`)
	}
}

func (v *validation) validateArray(s *parser.Schema, data []any, inst, sp string) {
	if s.MaxItems != nil && len(data) > *s.MaxItems {
		v.fail(inst, sp+"/maxItems", "maxItems", fmt.Sprintf("must NOT have more than %d items", *s.MaxItems))
		if v.stop() {
			return
		}
	}
	if s.MinItems != nil && len(data) < *s.MinItems {
		v.fail(inst, sp+"/minItems", "minItems", fmt.Sprintf("must NOT have fewer than %d items", *s.MinItems))
		if v.stop() {
			return
		}
	}
	if s.UniqueItems {
		if i, j, dup := duplicate(data); dup {
			v.fail(inst, sp+"/uniqueItems", "uniqueItems",
				fmt.Sprintf("must NOT have duplicate items (items ## %d and %d are identical)", j, i))
			if v.stop() {
				return
			}
		}
	}
	if s.Items != nil {
		for i := range data {
			data[i] = v.validate(s.Items, data[i], inst+"/"+strconv.Itoa(i), sp+"/items", true)
			if v.stop() {
				return
			}
		}
	}
}

// duplicate scans from the end and returns the first pair of equal items,
// i being the later index.
func duplicate(data []any) (i, j int, found bool) {
	for i = len(data) - 1; i > 0; i-- {
		for j = i - 1; j >= 0; j-- {
			if equal(data[i], data[j]) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func (v *validation) validateObject(s *parser.Schema, data map[string]any, inst, sp string) {
	names := maputil.SortedKeys(s.Properties)

	if v.engine.defaults {
		for _, name := range names {
			prop := s.Properties[name]
			if _, present := data[name]; !present && prop != nil && prop.Default != nil {
				data[name] = deepCopy(prop.Default)
			}
		}
	}

	if s.MaxProperties != nil && len(data) > *s.MaxProperties {
		v.fail(inst, sp+"/maxProperties", "maxProperties", fmt.Sprintf("must NOT have more than %d properties", *s.MaxProperties))
		if v.stop() {
			return
		}
	}
	if s.MinProperties != nil && len(data) < *s.MinProperties {
		v.fail(inst, sp+"/minProperties", "minProperties", fmt.Sprintf("must NOT have fewer than %d properties", *s.MinProperties))
		if v.stop() {
			return
		}
	}
	for _, name := range s.Required {
		if _, present := data[name]; !present {
			v.fail(inst, sp+"/required", "required", fmt.Sprintf("must have required property '%s'", name))
			if v.stop() {
				return
			}
		}
	}

	if ap := s.AdditionalProperties; ap != nil {
		extra := make([]string, 0)
		for name := range data {
			if _, declared := s.Properties[name]; !declared {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			switch {
			case !ap.Allowed && v.engine.removeAdditional:
				delete(data, name)
			case !ap.Allowed:
				v.fail(inst, sp+"/additionalProperties", "additionalProperties", "must NOT have additional properties")
			case ap.Schema != nil:
				data[name] = v.validate(ap.Schema, data[name], inst+"/"+escapePointer(name), sp+"/additionalProperties", true)
			}
			if v.stop() {
				return
			}
		}
	}

	for _, name := range names {
		value, present := data[name]
		if !present {
			continue
		}
		data[name] = v.validate(s.Properties[name], value, inst+"/"+escapePointer(name), sp+"/properties/"+escapePointer(name), true)
		if v.stop() {
			return
		}
	}
}
