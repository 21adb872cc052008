package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/upb/commerce-gateway/utils"
	"go.uber.org/zap"
)

// Route maps a service prefix to an upstream base URL
type Route struct {
	Prefix   string
	Upstream *url.URL
}

type proxyRoute struct {
	Route
	key   string
	proxy *httputil.ReverseProxy
}

// Proxy forwards requests to upstream services by longest matching prefix.
// The prefix is stripped before forwarding: /produit-service/produits/3 is
// sent to the produit upstream as /produits/3.
type Proxy struct {
	routes []*proxyRoute
	logger *zap.Logger
}

// NewProxy builds a proxy from a prefix -> upstream URL table
func NewProxy(table map[string]string, logger *zap.Logger) (*Proxy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Proxy{logger: logger}

	for prefix, raw := range table {
		upstream, err := url.Parse(raw)
		if err != nil || upstream.Scheme == "" || upstream.Host == "" {
			return nil, fmt.Errorf("route %s: invalid upstream %q", prefix, raw)
		}
		key := MatchKey(prefix)
		if key == "/" {
			return nil, fmt.Errorf("route prefix must not be the root path")
		}
		route := &proxyRoute{
			Route: Route{Prefix: CleanPath(prefix), Upstream: upstream},
			key:   key,
		}
		route.proxy = p.newReverseProxy(route)
		p.routes = append(p.routes, route)
	}

	sort.Slice(p.routes, func(i, j int) bool {
		return len(p.routes[i].key) > len(p.routes[j].key)
	})
	return p, nil
}

// Routes returns the configured routes, longest prefix first
func (p *Proxy) Routes() []Route {
	out := make([]Route, len(p.routes))
	for i, r := range p.routes {
		out[i] = r.Route
	}
	return out
}

// ServeHTTP forwards the request or answers 404 when no route matches
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := MatchKey(r.URL.Path)
	for _, route := range p.routes {
		if HasSegmentPrefix(key, route.key) {
			route.proxy.ServeHTTP(w, r)
			return
		}
	}
	_ = utils.WriteNotFound(w, "No route for path")
}

func (p *Proxy) newReverseProxy(route *proxyRoute) *httputil.ReverseProxy {
	upstream := route.Upstream
	prefixLen := len(route.key)

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			clean := CleanPath(pr.In.URL.Path)
			var rest string
			if len(clean) >= prefixLen && strings.EqualFold(clean[:prefixLen], route.key) {
				rest = clean[prefixLen:]
			} else {
				// lowercasing changed the byte length; fall back to the match key
				rest = MatchKey(clean)[prefixLen:]
			}
			pr.SetURL(upstream)
			pr.Out.URL.Path = joinPath(upstream.Path, rest)
			pr.Out.URL.RawPath = ""
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Warn("upstream request failed",
				zap.String("prefix", route.Prefix),
				zap.String("upstream", upstream.Host),
				zap.Error(err))
			_ = utils.WriteBadGateway(w, "Upstream service unavailable")
		},
	}
}

func joinPath(base, rest string) string {
	base = strings.TrimSuffix(base, "/")
	if rest == "" {
		rest = "/"
	}
	return base + rest
}
