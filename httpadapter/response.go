package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/internal/httputil"
	"github.com/alexstrat/executable-openapi/internal/maputil"
)

func defaultFormatters() map[string]Formatter {
	return map[string]Formatter{
		"application/json": formatJSON,
		"text/plain":       formatText,
	}
}

func formatJSON(content any, _ *execution.Response, _ *http.Request) ([]byte, error) {
	return json.Marshal(content)
}

func formatText(content any, _ *execution.Response, _ *http.Request) ([]byte, error) {
	switch v := content.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil
	}
	return []byte(fmt.Sprint(content)), nil
}

// write sends resp, negotiating the content type against the Accept header
// of r. Without an acceptable content type the response is a 406; without
// a formatter for the chosen one, a 501.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, resp *execution.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if len(resp.Content) == 0 {
		w.WriteHeader(status)
		return
	}

	offers := maputil.SortedKeys(resp.Content)

	mediaType, ok := httputil.Negotiate(r.Header.Get("Accept"), offers)
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotAcceptable), http.StatusNotAcceptable)
		return
	}
	format, ok := h.formatters[mediaType]
	if !ok {
		http.Error(w, "missing a formatter for content type "+mediaType, http.StatusNotImplemented)
		return
	}
	data, err := format(resp.Content[mediaType], resp, r)
	if err != nil {
		h.fail(w, r, "formatting response", err)
		return
	}

	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}
