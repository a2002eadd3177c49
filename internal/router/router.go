// Package router resolves request paths to upstream service names.
package router

import (
	"sort"
	"strings"
	"sync"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/util"
)

// Route maps a path prefix to a logical service name.
type Route struct {
	// Prefix is the leading path segment the route matches.
	Prefix string

	// Service is the logical service name in the registry.
	Service string
}

// Resolver matches request paths against an ordered route table.
// Longer prefixes are tried first so overlapping prefixes resolve
// deterministically.
type Resolver struct {
	mu     sync.RWMutex
	routes []Route
}

// DefaultRoutes returns the built-in route table.
func DefaultRoutes() []Route {
	return []Route{
		{Prefix: "/spring/auth", Service: "Auth-Service"},
		{Prefix: "/spring/users", Service: "User-Service"},
		{Prefix: "/spring/products", Service: "Product-Service"},
		{Prefix: "/spring/ordering", Service: "Ordering-Service"},
		{Prefix: "/spring/payments", Service: "Payment-Service"},
	}
}

// New creates a resolver with the given routes. An empty route list
// falls back to the built-in table.
func New(routes []Route) *Resolver {
	r := &Resolver{}
	r.Reload(routes)
	return r
}

// FromConfig creates a resolver from the gateway route configuration.
func FromConfig(cfg []config.RouteConfig) *Resolver {
	routes := make([]Route, 0, len(cfg))
	for _, rc := range cfg {
		routes = append(routes, Route{Prefix: rc.Prefix, Service: rc.Service})
	}
	return New(routes)
}

// Resolve returns the service name for a request path.
// Returns a util.RouteNotFoundError when no prefix matches.
func (r *Resolver) Resolve(path string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if strings.HasPrefix(path, route.Prefix) {
			return route.Service, nil
		}
	}

	return "", util.NewRouteNotFoundError(path)
}

// Routes returns a copy of the current route table.
func (r *Resolver) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Reload replaces the route table. Used by the config watcher.
func (r *Resolver) Reload(routes []Route) {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}

	sorted := make([]Route, len(routes))
	copy(sorted, routes)

	// Longest prefix first; equal lengths keep config order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	r.mu.Lock()
	r.routes = sorted
	r.mu.Unlock()
}
