package router

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/alexstrat/executable-openapi/oaserrors"
)

// PathMatcher matches request paths against one OpenAPI path template.
// It converts templates like "/pets/{petId}" into anchored regular
// expressions and extracts the variable bindings of matching paths.
type PathMatcher struct {
	// template is the original path template (e.g., "/pets/{petId}")
	template string

	// regex is the compiled pattern for matching
	regex *regexp.Regexp

	// paramNames are the variable names in order of appearance
	paramNames []string

	// literals are the non-empty literal parts between variables
	literals []string
}

// NewPathMatcher creates a PathMatcher from a path template.
//
// A variable matches one non-empty path segment or part of it, so templates
// with a different number of segments than the request path never match.
// A name may appear more than once; the last binding wins.
func NewPathMatcher(template string) (*PathMatcher, error) {
	if template == "" {
		return nil, templateError(template, "path template cannot be empty")
	}

	var regexBuf strings.Builder
	regexBuf.WriteString("^")

	var paramNames, literals []string
	start := 0
	i := 0
	for i < len(template) {
		if template[i] == '{' {
			end := strings.IndexByte(template[i:], '}')
			if end == -1 {
				return nil, templateError(template, fmt.Sprintf("unclosed path variable at position %d", i))
			}
			name := template[i+1 : i+end]
			if name == "" {
				return nil, templateError(template, fmt.Sprintf("empty path variable at position %d", i))
			}
			paramNames = append(paramNames, name)
			if i > start {
				literals = append(literals, template[start:i])
			}
			regexBuf.WriteString("([^/]+)")
			i += end + 1
			start = i
			continue
		}
		regexBuf.WriteString(regexp.QuoteMeta(template[i : i+1]))
		i++
	}
	if start < len(template) {
		literals = append(literals, template[start:])
	}
	regexBuf.WriteString("$")

	regex, err := regexp.Compile(regexBuf.String())
	if err != nil {
		return nil, &oaserrors.ConfigError{Option: "path template", Value: template, Message: "failed to compile path pattern", Cause: err}
	}
	return &PathMatcher{template: template, regex: regex, paramNames: paramNames, literals: literals}, nil
}

func templateError(template, msg string) error {
	return &oaserrors.ConfigError{Option: "path template", Value: template, Message: msg}
}

// Match reports whether path matches the template and returns the decoded
// variable bindings.
func (pm *PathMatcher) Match(path string) (map[string]string, bool) {
	matches := pm.regex.FindStringSubmatch(path)
	if matches == nil || len(matches) != len(pm.paramNames)+1 {
		return nil, false
	}

	bindings := make(map[string]string, len(pm.paramNames))
	for i, name := range pm.paramNames {
		value := matches[i+1]
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		bindings[name] = value
	}
	return bindings, true
}

// Template returns the original path template.
func (pm *PathMatcher) Template() string {
	return pm.template
}

// ParamNames returns the variable names in order of appearance.
func (pm *PathMatcher) ParamNames() []string {
	return pm.paramNames
}

// CompareConcreteness orders two templates by concreteness. The literal
// parts between variables are compared pairwise by length; the first pair
// that differs decides, a missing part counting as empty. The result is
// negative when a is more concrete than b, positive when b is, and 0 when
// they tie. A part missing on one side counts as length 0, so the template
// with more literal text wins rather than the one with fewer parts.
//
// Templates that do not compile tie with everything.
//
//	CompareConcreteness("/user/none", "/user/{id}") < 0
//	CompareConcreteness("/user/{id}/orders/foo", "/user/{id}/orders/{id}") < 0
//	CompareConcreteness("/a/{x}/b", "/a/{x}") < 0
func CompareConcreteness(a, b string) int {
	am, err := NewPathMatcher(a)
	if err != nil {
		return 0
	}
	bm, err := NewPathMatcher(b)
	if err != nil {
		return 0
	}
	return compareLiterals(am.literals, bm.literals)
}

func compareLiterals(aParts, bParts []string) int {
	for i := 0; i < max(len(aParts), len(bParts)); i++ {
		var aLen, bLen int
		if i < len(aParts) {
			aLen = len(aParts[i])
		}
		if i < len(bParts) {
			bLen = len(bParts[i])
		}
		if aLen != bLen {
			return bLen - aLen
		}
	}
	return 0
}

// PathMatcherSet matches request paths against a set of templates and picks
// the most concrete match.
type PathMatcherSet struct {
	// matchers is sorted by concreteness, declaration order breaking ties
	matchers []*PathMatcher
}

// NewPathMatcherSet creates a PathMatcherSet from templates listed in
// declaration order.
func NewPathMatcherSet(templates []string) (*PathMatcherSet, error) {
	matchers := make([]*PathMatcher, 0, len(templates))
	for _, template := range templates {
		matcher, err := NewPathMatcher(template)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, matcher)
	}

	sort.SliceStable(matchers, func(i, j int) bool {
		return compareLiterals(matchers[i].literals, matchers[j].literals) < 0
	})
	return &PathMatcherSet{matchers: matchers}, nil
}

// Match returns the most concrete template matching path and its bindings.
func (pms *PathMatcherSet) Match(path string) (template string, bindings map[string]string, found bool) {
	for _, matcher := range pms.matchers {
		if bindings, ok := matcher.Match(path); ok {
			return matcher.template, bindings, true
		}
	}
	return "", nil, false
}

// Templates returns the templates, most concrete first.
func (pms *PathMatcherSet) Templates() []string {
	templates := make([]string, len(pms.matchers))
	for i, m := range pms.matchers {
		templates[i] = m.template
	}
	return templates
}
