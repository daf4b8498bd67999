// Package router classifies inbound hostname+path pairs into routing decisions.
package router

import (
	"net"
	"strings"
	"sync/atomic"

	"edge-proxy-go/internal/config"
)

// Kind is the top-level routing decision class.
type Kind int

const (
	// KindBypass serves the request from a first-party domain with no rewriting.
	KindBypass Kind = iota
	// KindSpecial short-circuits to an operational route.
	KindSpecial
	// KindProxy forwards the request to the origin on behalf of a customer hostname.
	KindProxy
)

// SpecialRoute identifies the operational route a special decision resolves to.
type SpecialRoute string

const (
	SpecialHealth  SpecialRoute = "health"
	SpecialDebug   SpecialRoute = "debug"
	SpecialLanding SpecialRoute = "landing"
)

// Decision is the result of routing one request. Computed once per request,
// immutable thereafter.
type Decision struct {
	Kind          Kind
	Special       SpecialRoute
	EffectiveHost string

	// Ambiguous marks a default-domain path that had no explicit hostname
	// mapping and was routed on a best-effort basis.
	Ambiguous bool
}

// specialPaths are operational routes recognized on any hostname.
var specialPaths = map[string]SpecialRoute{
	"/health":  SpecialHealth,
	"/_health": SpecialHealth,
	"/debug":   SpecialDebug,
	"/_debug":  SpecialDebug,
}

// Table is an immutable snapshot of the hostname routing configuration.
// Routers swap whole tables atomically on config reload.
type Table struct {
	DefaultDomain string
	Bypass        map[string]bool
	PathHostnames map[string]string
}

// TableFromConfig builds a routing table snapshot from the edge config section.
func TableFromConfig(cfg *config.Config) *Table {
	bypass := make(map[string]bool, len(cfg.Edge.BypassDomains))
	for _, d := range cfg.Edge.BypassDomains {
		bypass[strings.ToLower(d)] = true
	}

	mappings := make(map[string]string, len(cfg.Edge.PathHostnames))
	for seg, host := range cfg.Edge.PathHostnames {
		mappings[strings.ToLower(seg)] = strings.ToLower(host)
	}

	return &Table{
		DefaultDomain: strings.ToLower(cfg.Edge.DefaultDomain),
		Bypass:        bypass,
		PathHostnames: mappings,
	}
}

// Router resolves routing decisions against the current table. Safe for
// concurrent use; Swap replaces the table without locking readers.
type Router struct {
	table atomic.Pointer[Table]
}

// New creates a Router over an initial table.
func New(t *Table) *Router {
	r := &Router{}
	r.table.Store(t)
	return r
}

// Swap atomically replaces the routing table. In-flight requests keep the
// snapshot they started with.
func (r *Router) Swap(t *Table) {
	r.table.Store(t)
}

// Route classifies a hostname+path pair. Pure with respect to the current
// table: no side effects, deterministic, total.
func (r *Router) Route(host, path string) Decision {
	return r.table.Load().Route(host, path)
}

// Route classifies a hostname+path pair against this table snapshot.
func (t *Table) Route(host, path string) Decision {
	host = Hostname(host)

	if t.Bypass[host] {
		return Decision{Kind: KindBypass, EffectiveHost: host}
	}

	if sp, ok := specialPaths[path]; ok {
		return Decision{Kind: KindSpecial, Special: sp, EffectiveHost: host}
	}

	if host == t.DefaultDomain {
		if path == "/" || path == "" {
			return Decision{Kind: KindSpecial, Special: SpecialLanding, EffectiveHost: host}
		}
		if mapped, ok := t.PathHostnames[firstSegment(path)]; ok {
			return Decision{Kind: KindProxy, EffectiveHost: mapped}
		}
		// No mapping configured: degrade to a best-effort proxy on the
		// platform domain itself rather than failing the request.
		return Decision{Kind: KindProxy, EffectiveHost: host, Ambiguous: true}
	}

	return Decision{Kind: KindProxy, EffectiveHost: host}
}

// Hostname normalizes a Host header value: lowercased, port stripped.
func Hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// firstSegment returns the first path segment, lowercased, without slashes.
func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return strings.ToLower(path)
}
