package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/alexstrat/executable-openapi/internal/httputil"
)

// decodeBody turns raw body bytes into the value handed to the executor:
// JSON media types decode to JSON values, text/* to a string, URL-encoded
// forms to a map of first values, anything else stays []byte.
func decodeBody(contentType string, data []byte) (any, error) {
	mediaType := httputil.BaseMediaType(contentType)
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return v, nil

	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		form := make(map[string]any, len(values))
		for k, v := range firstValues(values) {
			form[k] = v
		}
		return form, nil

	case strings.HasPrefix(mediaType, "text/"):
		return string(data), nil
	}
	return data, nil
}
