package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dtnitsch/seo-edge-proxy/models"
	"github.com/dtnitsch/seo-edge-proxy/pkg/db"
	"github.com/dtnitsch/seo-edge-proxy/pkg/metrics"
)

const (
	pageDataPath = "/public/data/0b6c1f1e-3a59-4e8e-9d43-3f0f2d1c9a77.json"
	pageDataBody = "{\"page\": {\"id\":\"p1\",  \"title\":{\"fr\":\"Tarte\"}},\n \"n\": 1.50}\n"
	originPage   = `<!DOCTYPE html><html><head><title>WeWeb</title>` +
		`<meta name="robots" content="noindex">` +
		`<meta property="og:title" content="old">` +
		`<link rel="alternate" hreflang="fr" href="https://abc12345-1234-1234-1234-123456789012.weweb-preview.io/fr/recipe/1">` +
		`<link rel="icon" href="/builder.ico">` +
		`</head><body><p>hi</p></body></html>`
)

var fixedNow = time.UnixMilli(1700000000123)

const originETag = `"abc"`

type memRecorder struct {
	mu      sync.Mutex
	entries []db.RequestEntry
}

func (m *memRecorder) RecordRequest(e db.RequestEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type fixture struct {
	handler  *Handler
	metrics  *metrics.Metrics
	recorder *memRecorder
	origin   *httptest.Server
	api      *httptest.Server

	mu          sync.Mutex
	originCalls []*http.Request
	apiCalls    []string
}

func (f *fixture) metadataCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.apiCalls...)
}

func (f *fixture) lastOriginCall(t *testing.T) *http.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.originCalls) == 0 {
		t.Fatal("origin was never called")
	}
	return f.originCalls[len(f.originCalls)-1]
}

// newFixture starts a fake origin and metadata API. The origin serves an
// HTML page for /recipe/* and page data with range and validator support, a service worker and echoes POSTs.
// The API answers /recipes/<id> with a title unless apiStatus says otherwise.
func newFixture(t *testing.T, apiStatus int, mutate func(*models.ProxyConfig)) *fixture {
	t.Helper()
	f := &fixture{metrics: metrics.New(), recorder: &memRecorder{}}

	f.origin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		clone := r.Clone(r.Context())
		clone.Body = io.NopCloser(strings.NewReader(string(body)))
		f.originCalls = append(f.originCalls, clone)
		f.mu.Unlock()

		w.Header().Set("X-Robots-Tag", "noindex, nofollow")
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write(body)
		case r.URL.Path == "/serviceworker.js":
			w.Header().Set("Content-Type", "application/javascript")
			io.WriteString(w, "const version = 456;\nself.addEventListener('activate', () => caches.keys());")
		case r.URL.Path == pageDataPath:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Etag", originETag)
			http.ServeContent(w, r, "", fixedNow, strings.NewReader(pageDataBody))
		case r.URL.Path == "/public/data/0b6c1f1e-3a59-4e8e-9d43-3f0f2d1c9a78.json":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, "not json")
		case r.URL.Path == "/recipe/pdf/":
			w.Header().Set("Content-Type", "application/pdf")
			io.WriteString(w, "%PDF <title>")
		case r.URL.Path == "/recipe/missing":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, "<title>Not found</title>")
		case strings.HasPrefix(r.URL.Path, "/recipe/"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Etag", originETag)
			http.ServeContent(w, r, "", fixedNow, strings.NewReader(originPage))
		default:
			w.Header().Set("Content-Type", "text/plain")
			io.WriteString(w, "static")
		}
	}))
	t.Cleanup(f.origin.Close)

	f.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.apiCalls = append(f.apiCalls, r.URL.Path)
		f.mu.Unlock()
		if apiStatus != http.StatusOK {
			w.WriteHeader(apiStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"title":"Tarte Tatin","description":"Caramel apples","image":"https://img/t.jpg","keywords":"apple"}`)
	}))
	t.Cleanup(f.api.Close)

	cfg := &models.ProxyConfig{
		Origin:            f.origin.URL,
		CanonicalDomain:   "www.couteau.ai",
		PreviewHostSuffix: "weweb-preview.io",
		ServiceWorker: models.ServiceWorkerConfig{
			VersionPolicy: models.VersionPolicyFixed,
			Version:       "9001",
		},
		Routes: []models.RouteRule{
			{PathPattern: "/recipe/[^/]+", MetadataEndpoint: f.api.URL + "/recipes/{recipes_id}"},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	h, err := New(Options{
		Config:   cfg,
		Recorder: f.recorder,
		Metrics:  f.metrics,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.handler = h
	return f
}

func (f *fixture) do(t *testing.T, method, path string, header map[string]string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestClassify(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)

	tests := []struct {
		name   string
		method string
		path   string
		want   string
	}{
		{"service worker", http.MethodGet, "/serviceworker.js", "service_worker"},
		{"page without slash", http.MethodGet, "/recipe/abc123", "page"},
		{"page with slash", http.MethodGet, "/recipe/abc123/", "page"},
		{"page data", http.MethodGet, pageDataPath, "page_data"},
		{"page data bad uuid", http.MethodGet, "/public/data/not-a-uuid.json", "passthrough"},
		{"unmatched", http.MethodGet, "/about", "passthrough"},
		{"post to page", http.MethodPost, "/recipe/abc123", "passthrough"},
		{"head to page", http.MethodHead, "/recipe/abc123", "passthrough"},
		{"delete worker", http.MethodDelete, "/serviceworker.js", "passthrough"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.handler.Classify(httptest.NewRequest(tt.method, tt.path, nil))
			if got.Name() != tt.want {
				t.Errorf("Classify(%s %s) = %s, want %s", tt.method, tt.path, got.Name(), tt.want)
			}
		})
	}

	if rt, ok := f.handler.Classify(httptest.NewRequest(http.MethodGet, "/recipe/x", nil)).(PageRoute); !ok || rt.Rule.PathPattern != "/recipe/[^/]+" {
		t.Errorf("PageRoute rule = %+v", rt.Rule)
	}
}

func TestServeHTTP_NoRobotsHeaderOnAnyRoute(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
	}{
		{"page", http.MethodGet, "/recipe/abc123", nil},
		{"page non-2xx", http.MethodGet, "/recipe/missing", nil},
		{"page data without referer", http.MethodGet, pageDataPath, nil},
		{"page data with referer", http.MethodGet, pageDataPath, map[string]string{"Referer": "https://www.couteau.ai/recipe/abc123"}},
		{"service worker", http.MethodGet, "/serviceworker.js", nil},
		{"passthrough", http.MethodGet, "/about", nil},
		{"passthrough post", http.MethodPost, "/recipe/abc123", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.header, "")
			if _, ok := rec.Header()["X-Robots-Tag"]; ok {
				t.Errorf("X-Robots-Tag present: %v", rec.Header())
			}
			if rec.Header().Get(RequestIDHeader) == "" {
				t.Error("request id header missing")
			}
		})
	}
}

func TestServeHTTP_Page(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)
	rec := f.do(t, http.MethodGet, "/recipe/abc123", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if calls := f.metadataCalls(); len(calls) != 1 || calls[0] != "/recipes/abc123" {
		t.Errorf("metadata requests = %v, want [/recipes/abc123]", calls)
	}
	if got := f.lastOriginCall(t).Header.Get("Accept-Encoding"); got != "identity" {
		t.Errorf("origin Accept-Encoding = %q", got)
	}

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name string
		got  string
		want string
	}{
		{"title", doc.Find("title").Text(), "Tarte Tatin"},
		{"og:title", doc.Find(`meta[property="og:title"]`).AttrOr("content", ""), "Tarte Tatin"},
		{"hreflang", doc.Find(`link[rel="alternate"]`).AttrOr("href", ""), "https://www.couteau.ai/fr/recipe/1"},
		{"favicon", doc.Find(`link[rel="icon"]`).AttrOr("href", ""), "https://www.couteau.ai/favicon.ico"},
		{"viewport", doc.Find(`meta[name="viewport"]`).AttrOr("content", ""), "width=device-width, initial-scale=1.0, maximum-scale=1.0, user-scalable=no"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if doc.Find(`meta[name="robots"]`).Length() != 0 {
		t.Error("noindex robots meta kept")
	}
	if rec.Header().Get("Content-Length") != "" {
		t.Error("stale Content-Length forwarded for rewritten page")
	}

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if len(f.recorder.entries) != 1 {
		t.Fatalf("recorded %d entries", len(f.recorder.entries))
	}
	e := f.recorder.entries[0]
	if e.Route != "page" || e.Status != http.StatusOK || e.MetadataOK == nil || !*e.MetadataOK {
		t.Errorf("recorded entry = %+v", e)
	}
}

func TestServeHTTP_PageMetadataFailureDegrades(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError, nil)
	rec := f.do(t, http.MethodGet, "/recipe/abc123", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Find("title").Text(); got != "WeWeb" {
		t.Errorf("title = %q, want original", got)
	}
	if got := doc.Find(`meta[property="og:title"]`).AttrOr("content", ""); got != "old" {
		t.Errorf("og:title = %q, want original", got)
	}
	// Unconditional rules still apply.
	if doc.Find(`meta[name="robots"]`).Length() != 0 || doc.Find(`meta[name="viewport"]`).Length() != 1 {
		t.Error("unconditional rewrites skipped on metadata failure")
	}
	if !strings.Contains(f.scrape(t), "metadata_failures_total 1") {
		t.Error("metadata failure not counted")
	}
}

func TestServeHTTP_PageUnmodifiedResponses(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"non-html", "/recipe/pdf/", http.StatusOK, "%PDF <title>"},
		{"non-2xx", "/recipe/missing", http.StatusNotFound, "<title>Not found</title>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, nil, "")
			if rec.Code != tt.wantStatus || rec.Body.String() != tt.wantBody {
				t.Errorf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tt.wantStatus, tt.wantBody)
			}
		})
	}
}

func TestServeHTTP_OriginUnavailable(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)
	f.origin.Close()

	for _, path := range []string{"/recipe/abc123", pageDataPath} {
		rec := f.do(t, http.MethodGet, path, nil, "")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("%s: status = %d, want 502", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "origin unavailable") {
			t.Errorf("%s: body = %q", path, rec.Body.String())
		}
	}
	if !strings.Contains(f.scrape(t), "origin_failures_total 2") {
		t.Error("origin failures not counted")
	}
}

func TestServeHTTP_PageData(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)

	tests := []struct {
		name      string
		path      string
		referer   string
		unchanged string
	}{
		{name: "no referer", path: pageDataPath, unchanged: pageDataBody},
		{name: "referer matches no rule", path: pageDataPath, referer: "https://www.couteau.ai/about", unchanged: pageDataBody},
		{name: "invalid json", path: "/public/data/0b6c1f1e-3a59-4e8e-9d43-3f0f2d1c9a78.json", referer: "https://www.couteau.ai/recipe/abc123", unchanged: "not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.referer != "" {
				header["Referer"] = tt.referer
			}
			rec := f.do(t, http.MethodGet, tt.path, header, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if rec.Body.String() != tt.unchanged {
				t.Errorf("body = %q, want origin bytes %q", rec.Body.String(), tt.unchanged)
			}
		})
	}
}

func TestServeHTTP_PageDataPatched(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)
	rec := f.do(t, http.MethodGet, pageDataPath, map[string]string{"Referer": "https://www.couteau.ai/recipe/abc123?x=1"}, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if calls := f.metadataCalls(); len(calls) != 1 || calls[0] != "/recipes/abc123" {
		t.Errorf("metadata requests = %v, want [/recipes/abc123]", calls)
	}

	var doc struct {
		N    json.Number `json:"n"`
		Page struct {
			ID          string            `json:"id"`
			Title       map[string]string `json:"title"`
			SocialTitle map[string]string `json:"socialTitle"`
			SocialDesc  map[string]string `json:"socialDesc"`
			MetaImage   string            `json:"metaImage"`
			Meta        struct {
				Desc     map[string]string `json:"desc"`
				Keywords map[string]string `json:"keywords"`
			} `json:"meta"`
		} `json:"page"`
	}
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	checks := []struct {
		name, got, want string
	}{
		{"n", doc.N.String(), "1.50"},
		{"page.id", doc.Page.ID, "p1"},
		{"title.fr", doc.Page.Title["fr"], "Tarte"},
		{"title.en", doc.Page.Title["en"], "Tarte Tatin"},
		{"socialTitle.en", doc.Page.SocialTitle["en"], "Tarte Tatin"},
		{"meta.desc.en", doc.Page.Meta.Desc["en"], "Caramel apples"},
		{"socialDesc.en", doc.Page.SocialDesc["en"], "Caramel apples"},
		{"meta.keywords.en", doc.Page.Meta.Keywords["en"], "apple"},
		{"metaImage", doc.Page.MetaImage, "https://img/t.jpg"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestServeHTTP_PageDataMetadataFailure(t *testing.T) {
	f := newFixture(t, http.StatusBadGateway, nil)
	rec := f.do(t, http.MethodGet, pageDataPath, map[string]string{"Referer": "https://www.couteau.ai/recipe/abc123"}, "")

	if rec.Body.String() != pageDataBody {
		t.Errorf("body = %q, want origin bytes", rec.Body.String())
	}
	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if e := f.recorder.entries[0]; e.MetadataOK == nil || *e.MetadataOK {
		t.Errorf("MetadataOK = %v, want false", e.MetadataOK)
	}
}

func TestServeHTTP_ServiceWorker(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)
	rec := f.do(t, http.MethodGet, "/serviceworker.js", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if !strings.Contains(rec.Body.String(), `const version = "9001";`) {
		t.Errorf("worker does not carry configured version:\n%s", rec.Body.String())
	}
	if got := f.lastOriginCall(t).URL.Query().Get("cb"); got != "1700000000123" {
		t.Errorf("cache buster = %q", got)
	}
}

func TestServeHTTP_ServiceWorkerUpstreamPolicy(t *testing.T) {
	f := newFixture(t, http.StatusOK, func(cfg *models.ProxyConfig) {
		cfg.ServiceWorker = models.ServiceWorkerConfig{Paths: []string{"/sw.js", "/serviceworker.js"}, VersionPolicy: models.VersionPolicyUpstream}
	})
	rec := f.do(t, http.MethodGet, "/serviceworker.js", nil, "")
	if !strings.Contains(rec.Body.String(), `const version = "456";`) {
		t.Errorf("worker does not carry upstream version:\n%s", rec.Body.String())
	}
}

func TestServeHTTP_ServiceWorkerFallback(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)
	f.origin.Close()

	rec := f.do(t, http.MethodGet, "/serviceworker.js", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 fallback", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fallback") {
		t.Errorf("fallback worker not served:\n%s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestServeHTTP_PassthroughPost(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)
	rec := f.do(t, http.MethodPost, "/recipe/abc123", map[string]string{"Content-Type": "application/x-www-form-urlencoded"}, "a=1")

	if rec.Code != http.StatusCreated || rec.Body.String() != "a=1" {
		t.Errorf("got %d %q, want 201 echo", rec.Code, rec.Body.String())
	}
	if len(f.metadataCalls()) != 0 {
		t.Error("metadata fetched for a POST")
	}
	if got := f.lastOriginCall(t).Method; got != http.MethodPost {
		t.Errorf("origin method = %s", got)
	}
}

func TestServeHTTP_PanicBecomes500(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)
	f.handler.passthrough = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := f.do(t, http.MethodGet, "/about", nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "internal error" {
		t.Errorf("body = %q", rec.Body.String())
	}
	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if len(f.recorder.entries) != 1 || f.recorder.entries[0].Status != http.StatusInternalServerError {
		t.Errorf("entries = %+v", f.recorder.entries)
	}
}

func TestServeHTTP_RangeAndConditionalsNotForwarded(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)

	tests := []struct {
		name    string
		path    string
		referer string
		want    string
	}{
		{name: "page", path: "/recipe/abc123", want: "<title>Tarte Tatin</title>"},
		{name: "page data", path: pageDataPath, referer: "https://www.couteau.ai/recipe/abc123", want: `"Tarte Tatin"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{
				"Range":             "bytes=0-40",
				"If-Range":          originETag,
				"If-None-Match":     originETag,
				"If-Modified-Since": fixedNow.UTC().Format(http.TimeFormat),
			}
			if tt.referer != "" {
				header["Referer"] = tt.referer
			}
			rec := f.do(t, http.MethodGet, tt.path, header, "")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if cr := rec.Header().Get("Content-Range"); cr != "" {
				t.Errorf("Content-Range = %q on a full body", cr)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %s:\n%s", tt.want, rec.Body.String())
			}
			sent := f.lastOriginCall(t).Header
			for _, k := range []string{"Range", "If-Range", "If-None-Match", "If-Modified-Since"} {
				if v := sent.Get(k); v != "" {
					t.Errorf("origin received %s: %q", k, v)
				}
			}
		})
	}
}

func TestServeHTTP_RewrittenResponsesDropValidators(t *testing.T) {
	f := newFixture(t, http.StatusOK, nil)

	tests := []struct {
		name     string
		path     string
		referer  string
		wantETag string
		wantVary bool
	}{
		{name: "page", path: "/recipe/abc123"},
		{name: "patched page data", path: pageDataPath, referer: "https://www.couteau.ai/recipe/abc123", wantVary: true},
		{name: "page data without referer", path: pageDataPath, wantETag: originETag, wantVary: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.referer != "" {
				header["Referer"] = tt.referer
			}
			rec := f.do(t, http.MethodGet, tt.path, header, "")

			if got := rec.Header().Get("Etag"); got != tt.wantETag {
				t.Errorf("Etag = %q, want %q", got, tt.wantETag)
			}
			if tt.wantETag == "" && rec.Header().Get("Last-Modified") != "" {
				t.Errorf("Last-Modified forwarded on rewritten body")
			}
			vary := strings.Join(rec.Header().Values("Vary"), ",")
			if got := strings.Contains(vary, "Referer"); got != tt.wantVary {
				t.Errorf("Vary = %q, want Referer: %v", vary, tt.wantVary)
			}
		})
	}
}

func TestIsRewritable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, true},
		{http.StatusNonAuthoritativeInfo, true},
		{http.StatusPartialContent, false},
		{http.StatusNotModified, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		if got := isRewritable(&http.Response{StatusCode: tt.status}); got != tt.want {
			t.Errorf("isRewritable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
