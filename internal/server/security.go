package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/httpadapter"
	"github.com/alexstrat/executable-openapi/internal/config"
	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/parser"
)

// credential locates the credential of a security scheme in a request.
type credential struct {
	header string
	query  string
	cookie string
	prefix string
	tls    bool

	tokens map[string]bool
	scopes []string
}

func (c *credential) authenticate(_ context.Context, r *http.Request) (execution.Security, error) {
	if c.tls {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			return execution.Security{}, nil
		}
		return execution.Granted(c.scopes...), nil
	}

	var value string
	switch {
	case c.header != "":
		value = r.Header.Get(c.header)
	case c.query != "":
		value = r.URL.Query().Get(c.query)
	case c.cookie != "":
		if ck, err := r.Cookie(c.cookie); err == nil {
			value = ck.Value
		}
	}
	if c.prefix != "" {
		if len(value) < len(c.prefix) || !strings.EqualFold(value[:len(c.prefix)], c.prefix) {
			return execution.Security{}, nil
		}
		value = value[len(c.prefix):]
	}
	value = strings.TrimSpace(value)
	if value == "" || len(c.tokens) > 0 && !c.tokens[value] {
		return execution.Security{}, nil
	}
	return execution.Granted(c.scopes...), nil
}

// SecuritySchemes returns the options authenticating the security schemes
// of doc over HTTP. Schemes listed in configured read their credential as
// configured. The others are granted, with every scope their flows
// declare, whenever the credential they declare is present.
func SecuritySchemes(doc *parser.Document, configured []config.SchemeConfig) []httpadapter.Option {
	creds := make(map[string]*credential)
	if doc != nil && doc.Components != nil {
		for name, s := range doc.Components.SecuritySchemes {
			if c := declared(s); c != nil {
				creds[name] = c
			}
		}
	}
	for _, s := range configured {
		c := &credential{header: s.Header, query: s.Query, prefix: s.Prefix, scopes: s.Scopes}
		if len(s.Tokens) > 0 {
			c.tokens = make(map[string]bool, len(s.Tokens))
			for _, tok := range s.Tokens {
				c.tokens[tok] = true
			}
		}
		creds[s.Name] = c
	}

	names := maputil.SortedKeys(creds)
	opts := make([]httpadapter.Option, 0, len(names))
	for _, name := range names {
		opts = append(opts, httpadapter.WithSecurityScheme(name, creds[name].authenticate))
	}
	return opts
}

// declared returns the credential a security scheme declares, or nil when
// it cannot be located.
func declared(s *parser.SecurityScheme) *credential {
	if s == nil || s.Ref != "" {
		return nil
	}
	switch strings.ToLower(s.Type) {
	case "apikey":
		switch s.In {
		case "header":
			return &credential{header: s.Name}
		case "query":
			return &credential{query: s.Name}
		case "cookie":
			return &credential{cookie: s.Name}
		}
	case "http":
		scheme := strings.ToLower(s.Scheme)
		if scheme == "" {
			return nil
		}
		return &credential{header: "Authorization", prefix: scheme + " "}
	case "oauth2", "openidconnect":
		return &credential{header: "Authorization", prefix: "bearer ", scopes: flowScopes(s)}
	case "mutualtls":
		return &credential{tls: true}
	}
	return nil
}

// flowScopes returns the scopes declared by the OAuth2 flows of s, sorted.
func flowScopes(s *parser.SecurityScheme) []string {
	flows, _ := s.Extra["flows"].(map[string]any)
	seen := make(map[string]bool)
	for _, flow := range flows {
		f, _ := flow.(map[string]any)
		scopes, _ := f["scopes"].(map[string]any)
		for scope := range scopes {
			seen[scope] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := maputil.SortedKeys(seen)
	return out
}

// Grants returns every security scheme of doc granted, with the scopes its
// flows declare. It authenticates callers trusted as a whole, such as the
// client of an MCP session.
func Grants(doc *parser.Document) map[string]execution.Security {
	if doc == nil || doc.Components == nil || len(doc.Components.SecuritySchemes) == 0 {
		return nil
	}
	grants := make(map[string]execution.Security, len(doc.Components.SecuritySchemes))
	for name, s := range doc.Components.SecuritySchemes {
		var scopes []string
		if s != nil {
			scopes = flowScopes(s)
		}
		grants[name] = execution.Granted(scopes...)
	}
	return grants
}
