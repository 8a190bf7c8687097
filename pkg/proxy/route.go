package proxy

import (
	"net/http"

	"github.com/dtnitsch/seo-edge-proxy/pkg/matcher"
)

// Route is the classification of one inbound request. The set of
// implementations is closed: ServiceWorkerRoute, PageRoute, PageDataRoute
// and PassthroughRoute.
type Route interface {
	Name() string
	route()
}

// ServiceWorkerRoute replaces the builder's service worker script.
type ServiceWorkerRoute struct{}

// PageRoute rewrites an HTML page with metadata from Rule's endpoint.
type PageRoute struct {
	Rule matcher.Rule
}

// PageDataRoute patches the per-page JSON asset using the Referer page.
type PageDataRoute struct{}

// PassthroughRoute forwards the request to the origin unchanged.
type PassthroughRoute struct{}

func (ServiceWorkerRoute) Name() string { return "service_worker" }
func (PageRoute) Name() string          { return "page" }
func (PageDataRoute) Name() string      { return "page_data" }
func (PassthroughRoute) Name() string   { return "passthrough" }

func (ServiceWorkerRoute) route() {}
func (PageRoute) route()          {}
func (PageDataRoute) route()      {}
func (PassthroughRoute) route()   {}

// Classify derives the route for r from its method and path alone.
// Only GET requests are ever transformed. The page-data shape is checked
// before the configured rules so a broad pattern cannot capture it.
func (h *Handler) Classify(r *http.Request) Route {
	if r.Method != http.MethodGet {
		return PassthroughRoute{}
	}
	path := r.URL.Path
	if h.workerPaths[path] {
		return ServiceWorkerRoute{}
	}
	if matcher.IsPageData(path) {
		return PageDataRoute{}
	}
	if rule, ok := h.matcher.Match(path); ok {
		return PageRoute{Rule: rule}
	}
	return PassthroughRoute{}
}
