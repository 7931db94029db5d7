package auth

import (
	"net/http"
	"strings"
)

// rule pins a role to one path. An empty method matches any method.
type rule struct {
	path   string
	method string
	role   Role
}

// Changing the storage target or probing it needs admin. Controller probes and
// chart column choice only affect the caller's view.
var rules = []rule{
	{path: "/api/v1/settings/storage", method: http.MethodPut, role: RoleAdmin},
	{path: "/api/v1/storage/test", role: RoleAdmin},
	{path: "/api/v1/plc/test", role: RoleViewer},
	{path: "/api/v1/chart/columns", role: RoleViewer},
}

// streamPaths accept ?access_token= because EventSource and WebSocket
// clients in browsers cannot set headers.
var streamPaths = map[string]bool{
	"/api/v1/events": true,
	"/api/v1/live":   true,
}

// Policy maps requests to the role they need.
type Policy struct {
	exempt   map[string]bool
	prefixes []string
}

// NewDefaultPolicy builds the API policy. Requests matching exemptPaths or
// exemptPrefixes skip authentication.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	p := Policy{exempt: make(map[string]bool, len(exemptPaths)), prefixes: exemptPrefixes}
	for _, path := range exemptPaths {
		p.exempt[path] = true
	}
	return p
}

// IsExempt reports whether r skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if p.exempt[r.URL.Path] {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole returns the role r needs; false means the path is outside the API.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	for _, rl := range rules {
		if rl.path == r.URL.Path && (rl.method == "" || rl.method == r.Method) {
			return rl.role, true
		}
	}
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer, true
	default:
		return RoleOperator, true
	}
}

func tokenFrom(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if r.Method == http.MethodGet && streamPaths[r.URL.Path] {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
