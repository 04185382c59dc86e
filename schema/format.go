package schema

import (
	"encoding/base64"
	"math"
	"net/mail"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format checks a value against a named format. Formats only constrain the
// types they are written for and must return true for other values.
type Format func(v any) bool

var (
	hostnameRE = regexp.MustCompile(`^(?i)[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[-0-9a-z]{0,61}[0-9a-z])?)*$`)
	timeRE     = regexp.MustCompile(`^(?i)\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:z|[+-]\d{2}:?\d{2})?$`)
)

// builtinFormats are the OpenAPI and JSON Schema formats known by default.
// Unknown formats are not checked.
var builtinFormats = map[string]Format{
	"date": stringFormat(func(s string) bool {
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	}),
	"date-time": stringFormat(func(s string) bool {
		_, err := time.Parse(time.RFC3339Nano, strings.ToUpper(s))
		return err == nil
	}),
	"time": stringFormat(timeRE.MatchString),
	"email": stringFormat(func(s string) bool {
		addr, err := mail.ParseAddress(s)
		return err == nil && addr.Address == s
	}),
	"hostname": stringFormat(func(s string) bool {
		return len(s) <= 253 && hostnameRE.MatchString(s)
	}),
	"ipv4": stringFormat(func(s string) bool {
		addr, err := netip.ParseAddr(s)
		return err == nil && addr.Is4()
	}),
	"ipv6": stringFormat(func(s string) bool {
		addr, err := netip.ParseAddr(s)
		return err == nil && addr.Is6()
	}),
	"uri": stringFormat(func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && u.IsAbs()
	}),
	"uri-reference": stringFormat(func(s string) bool {
		_, err := url.Parse(s)
		return err == nil
	}),
	"uuid": stringFormat(func(s string) bool {
		s = strings.TrimPrefix(s, "urn:uuid:")
		if len(s) != 36 {
			return false
		}
		_, err := uuid.Parse(s)
		return err == nil
	}),
	"byte": stringFormat(func(s string) bool {
		_, err := base64.StdEncoding.DecodeString(s)
		return err == nil
	}),
	"int32": integerFormat(math.MinInt32, math.MaxInt32),
	"int64": integerFormat(math.MinInt64, math.MaxInt64),
}

func stringFormat(check func(string) bool) Format {
	return func(v any) bool {
		s, ok := v.(string)
		return !ok || check(s)
	}
}

func integerFormat(lo, hi float64) Format {
	return func(v any) bool {
		f, ok := toFloat64(v)
		if !ok {
			return true
		}
		return f == math.Trunc(f) && f >= lo && f <= hi
	}
}
