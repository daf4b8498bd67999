// Package headers implements the outbound header rewrite rules.
//
// The transform is a pure function from an inbound header set plus routing
// context to the header set sent to the origin. Unknown headers survive by
// default; only trust-boundary and edge-internal headers are rewritten or
// removed.
package headers

import (
	"net/http"
	"time"
)

// Headers injected or overwritten on every proxied request.
const (
	HeaderForwardedHost  = "X-Forwarded-Host"
	HeaderOriginalHost   = "X-Original-Host"
	HeaderForwardedProto = "X-Forwarded-Proto"
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"
	HeaderProxyVersion   = "X-Proxy-Version"
	HeaderProxyTimestamp = "X-Proxy-Timestamp"
	HeaderRequestID      = "X-Request-Id"
	HeaderClientCountry  = "X-Client-Country"
)

// Edge-platform signal headers. Values are read from the trusted edge and
// re-emitted under the stable names above; the raw headers never reach the
// origin.
const (
	EdgeConnectingIP = "CF-Connecting-IP"
	EdgeCountry      = "CF-IPCountry"
	EdgeRequestID    = "CF-Ray"
	edgeVisitor      = "CF-Visitor"
)

// edgeInternal lists edge-platform headers stripped from the outbound set.
var edgeInternal = []string{
	EdgeConnectingIP,
	EdgeCountry,
	EdgeRequestID,
	edgeVisitor,
	"True-Client-IP",
}

// spoofable lists client-supplied trust-boundary headers that are always
// replaced with edge-derived values.
var spoofable = []string{
	HeaderForwardedFor,
	HeaderRealIP,
	HeaderForwardedHost,
	HeaderForwardedProto,
	HeaderOriginalHost,
}

// Params carries the routing context the transform needs.
type Params struct {
	// EffectiveHost is the customer hostname the client actually requested.
	EffectiveHost string

	// OriginHost is the origin's own hostname, written into Host so
	// origin-side virtual-host checks succeed.
	OriginHost string

	Method string

	// ClientIP is the trusted connecting IP supplied by the edge platform,
	// never the client-supplied forwarded-for value.
	ClientIP string

	// RequestID is the edge request id; when empty the inbound CF-Ray value
	// is used instead.
	RequestID string

	Version string
	Now     time.Time
}

// Transform builds the outbound header set for a proxied request. The inbound
// set is not modified.
func Transform(in http.Header, p Params) http.Header {
	out := in.Clone()
	if out == nil {
		out = make(http.Header)
	}

	requestID := p.RequestID
	if requestID == "" {
		requestID = in.Get(EdgeRequestID)
	}
	country := in.Get(EdgeCountry)

	// Trust boundary: drop anything the client could have spoofed before
	// injecting edge-derived values.
	for _, h := range spoofable {
		out.Del(h)
	}
	for _, h := range edgeInternal {
		out.Del(h)
	}

	// Origin-side virtual-host validation needs the origin's own hostname.
	out.Set("Host", p.OriginHost)

	// State-changing calls must not carry the browser Origin header upstream;
	// reads keep it for origin-side CORS handling.
	if p.Method != http.MethodGet && p.Method != http.MethodHead {
		out.Del("Origin")
	}

	out.Set(HeaderForwardedHost, p.EffectiveHost)
	out.Set(HeaderOriginalHost, p.EffectiveHost)
	out.Set(HeaderForwardedProto, "https")
	out.Set(HeaderForwardedFor, p.ClientIP)
	out.Set(HeaderRealIP, p.ClientIP)
	out.Set(HeaderProxyVersion, p.Version)
	out.Set(HeaderProxyTimestamp, p.Now.UTC().Format(time.RFC3339))

	if requestID != "" {
		out.Set(HeaderRequestID, requestID)
	}
	if country != "" {
		out.Set(HeaderClientCountry, country)
	}

	return out
}
