package schema

import "strconv"

// coerce converts v to the first of types it can be converted to. Rules:
//
//	number, integer: numeric strings, booleans (1/0), null (0)
//	string:          numbers, booleans, null ("")
//	boolean:         "true"/"false", 1/0, null (false)
//	null:            "", 0, false
//
// Integers are returned as int64, other numbers as float64.
func coerce(v any, types []string) (any, bool) {
	for _, typ := range types {
		if out, ok := coerceTo(v, typ); ok {
			return out, true
		}
	}
	return nil, false
}

func coerceTo(v any, typ string) (any, bool) {
	switch typ {
	case "number":
		switch x := v.(type) {
		case string:
			if f, ok := parseNumeric(x); ok {
				return f, true
			}
		case bool:
			return boolNumber(x), true
		case nil:
			return float64(0), true
		}

	case "integer":
		switch x := v.(type) {
		case string:
			if n, ok := parseInteger(x); ok {
				return n, true
			}
		case bool:
			return int64(boolNumber(x)), true
		case nil:
			return int64(0), true
		}

	case "string":
		switch x := v.(type) {
		case bool:
			return strconv.FormatBool(x), true
		case nil:
			return "", true
		default:
			if f, ok := toFloat64(v); ok {
				return formatNumber(f), true
			}
		}

	case "boolean":
		switch x := v.(type) {
		case string:
			switch x {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		case nil:
			return false, true
		default:
			if f, ok := toFloat64(v); ok {
				switch f {
				case 1:
					return true, true
				case 0:
					return false, true
				}
			}
		}

	case "null":
		switch x := v.(type) {
		case string:
			if x == "" {
				return nil, true
			}
		case bool:
			if !x {
				return nil, true
			}
		default:
			if f, ok := toFloat64(v); ok && f == 0 {
				return nil, true
			}
		}
	}
	return nil, false
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
