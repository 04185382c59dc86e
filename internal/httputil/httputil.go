// Package httputil provides HTTP method, status code and media type helpers
// shared by the execution pipeline and its transport adapters.
package httputil

import (
	"mime"
	"sort"
	"strconv"
	"strings"
)

// HTTP Status Code Constants
const (
	StatusCodeLength = 3   // Standard length of HTTP status codes (e.g., "200", "404")
	MinStatusCode    = 100 // Minimum valid HTTP status code
	MaxStatusCode    = 599 // Maximum valid HTTP status code
	WildcardChar     = 'X' // Wildcard character used in status code patterns (e.g., "2XX")
)

// HTTP Method Constants, lower-cased as in OpenAPI path items.
const (
	MethodGet     = "get"
	MethodPut     = "put"
	MethodPost    = "post"
	MethodDelete  = "delete"
	MethodOptions = "options"
	MethodHead    = "head"
	MethodPatch   = "patch"
	MethodTrace   = "trace"
)

// Methods lists the path item methods in canonical order.
var Methods = []string{
	MethodGet, MethodPut, MethodPost, MethodDelete,
	MethodOptions, MethodHead, MethodPatch, MethodTrace,
}

// Wildcard boundary characters for validation
const (
	minWildcardBoundary = '1'
	maxWildcardBoundary = '5'
)

// ValidateStatusCode checks if a responses key is a valid status code.
// Valid values are:
//   - "default" for default response
//   - Wildcard patterns: 1XX, 2XX, 3XX, 4XX, 5XX
//   - Numeric codes: 100-599
func ValidateStatusCode(code string) bool {
	if code == "default" {
		return true
	}

	if len(code) != StatusCodeLength {
		return false
	}

	if code[1] == WildcardChar && code[2] == WildcardChar {
		return code[0] >= minWildcardBoundary && code[0] <= maxWildcardBoundary
	}

	statusCode, err := strconv.Atoi(code)
	return err == nil && statusCode >= MinStatusCode && statusCode <= MaxStatusCode
}

// StatusFromCode converts a responses key to a concrete status.
// Wildcards map to the first code of their class ("2XX" -> 200) and
// "default" maps to fallback.
func StatusFromCode(code string, fallback int) int {
	if code == "default" || !ValidateStatusCode(code) {
		return fallback
	}
	if code[1] == WildcardChar {
		return int(code[0]-'0') * 100
	}
	status, _ := strconv.Atoi(code)
	return status
}

// IsSuccessCode reports whether a responses key denotes a 2xx response.
func IsSuccessCode(code string) bool {
	return len(code) == StatusCodeLength && code[0] == '2' && ValidateStatusCode(code)
}

// BaseMediaType strips parameters and lower-cases a media type
// ("Text/Plain; charset=utf-8" -> "text/plain").
func BaseMediaType(mediaType string) string {
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	base, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// MatchMediaType reports whether mediaType satisfies pattern. The pattern may
// be "*/*" or "type/*". Parameters are ignored on both sides.
func MatchMediaType(pattern, mediaType string) bool {
	pattern = BaseMediaType(pattern)
	mediaType = BaseMediaType(mediaType)

	if pattern == "*/*" {
		return true
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := pattern[:len(pattern)-1]
		return strings.HasPrefix(mediaType, prefix)
	}

	return pattern == mediaType
}

// Specificity ranks a media type pattern: 2 for a concrete type, 1 for
// "type/*" and 0 for "*/*".
func Specificity(pattern string) int {
	pattern = BaseMediaType(pattern)
	switch {
	case pattern == "*/*":
		return 0
	case strings.HasSuffix(pattern, "/*"):
		return 1
	default:
		return 2
	}
}

// BestMatch returns the pattern among candidates that matches mediaType with
// the highest specificity. Candidates with equal specificity keep their
// order. The boolean is false when no candidate matches.
func BestMatch(mediaType string, candidates []string) (string, bool) {
	best, bestRank := "", -1
	for _, candidate := range candidates {
		if !MatchMediaType(candidate, mediaType) {
			continue
		}
		if rank := Specificity(candidate); rank > bestRank {
			best, bestRank = candidate, rank
		}
	}
	return best, bestRank >= 0
}

// acceptRange is one entry of an Accept header.
type acceptRange struct {
	mediaType string
	q         float64
	index     int
}

// Negotiate picks the offer preferred by an Accept header value. Offers are
// the concrete media types a response can be rendered in, in preference
// order. An empty Accept header accepts the first offer. The boolean is
// false when nothing is acceptable.
func Negotiate(accept string, offers []string) (string, bool) {
	if len(offers) == 0 {
		return "", false
	}
	if strings.TrimSpace(accept) == "" {
		return offers[0], true
	}

	ranges := parseAccept(accept)
	best, bestQ, bestSpec, bestIndex := "", 0.0, -1, len(ranges)
	for _, offer := range offers {
		for _, r := range ranges {
			if r.q <= 0 || !MatchMediaType(r.mediaType, offer) {
				continue
			}
			spec := Specificity(r.mediaType)
			if r.q > bestQ || (r.q == bestQ && spec > bestSpec) || (r.q == bestQ && spec == bestSpec && r.index < bestIndex) {
				best, bestQ, bestSpec, bestIndex = offer, r.q, spec, r.index
			}
		}
	}
	return best, best != ""
}

func parseAccept(accept string) []acceptRange {
	var ranges []acceptRange
	for i, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		q := 1.0
		mediaType, params, found := strings.Cut(part, ";")
		if found {
			for _, param := range strings.Split(params, ";") {
				key, value, _ := strings.Cut(strings.TrimSpace(param), "=")
				if strings.EqualFold(key, "q") {
					if parsed, err := strconv.ParseFloat(value, 64); err == nil {
						q = parsed
					}
				}
			}
		}
		ranges = append(ranges, acceptRange{mediaType: strings.ToLower(strings.TrimSpace(mediaType)), q: q, index: i})
	}
	sort.SliceStable(ranges, func(a, b int) bool { return ranges[a].q > ranges[b].q })
	return ranges
}
