// Package proxy is the request router: it classifies each inbound request
// and serves it from the origin, rewriting pages, page data and the service
// worker on the way through.
package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dtnitsch/seo-edge-proxy/models"
	"github.com/dtnitsch/seo-edge-proxy/pkg/db"
	"github.com/dtnitsch/seo-edge-proxy/pkg/matcher"
	"github.com/dtnitsch/seo-edge-proxy/pkg/metadata"
	"github.com/dtnitsch/seo-edge-proxy/pkg/metrics"
	"github.com/dtnitsch/seo-edge-proxy/pkg/origin"
	"github.com/dtnitsch/seo-edge-proxy/pkg/pagedata"
	"github.com/dtnitsch/seo-edge-proxy/pkg/rewriter"
	"github.com/dtnitsch/seo-edge-proxy/pkg/serviceworker"
)

// RequestIDHeader carries the request id in and out of the proxy.
const RequestIDHeader = "X-Request-Id"

// Recorder persists one row per handled request.
type Recorder interface {
	RecordRequest(db.RequestEntry) error
}

// Options configures New. Only Config is required.
type Options struct {
	Config *models.ProxyConfig
	// Client is shared by origin and metadata fetches. Nil builds one with
	// Config.Timeout.
	Client   *http.Client
	Recorder Recorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Handler serves every inbound request. It is safe for concurrent use.
type Handler struct {
	cfg         *models.ProxyConfig
	matcher     *matcher.Matcher
	origin      *origin.Client
	metadata    *metadata.Fetcher
	seo         *rewriter.SEORules
	passthrough http.Handler
	workerPaths map[string]bool
	recorder    Recorder
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a Handler from a validated config.
func New(opts Options) (*Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("proxy: config is required")
	}
	cfg := opts.Config

	m, err := matcher.Compile(cfg.Routes)
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	oc, err := origin.NewClient(cfg.Origin, client)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	mx := opts.Metrics
	if mx == nil {
		mx = metrics.New()
	}

	workerPaths := make(map[string]bool, len(cfg.ServiceWorker.Paths))
	for _, p := range cfg.ServiceWorker.Paths {
		workerPaths[p] = true
	}

	return &Handler{
		cfg:      cfg,
		matcher:  m,
		origin:   oc,
		metadata: metadata.NewFetcher(client),
		seo: rewriter.NewSEORules(rewriter.SEOOptions{
			CanonicalDomain:   cfg.CanonicalDomain,
			PreviewHostSuffix: cfg.PreviewHostSuffix,
			FaviconURL:        cfg.FaviconURL,
			FaviconCacheBust:  cfg.FaviconCacheBust,
			Now:               now,
		}),
		passthrough: origin.NewPassthrough(oc, logger),
		workerPaths: workerPaths,
		recorder:    opts.Recorder,
		metrics:     mx,
		logger:      logger,
		now:         now,
	}, nil
}

// ServeHTTP classifies r and serves it on the matching route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	reqID := r.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	route := h.Classify(r)
	logger := h.logger.With("request_id", reqID, "method", r.Method, "path", r.URL.Path, "route", route.Name())

	sw := newRobotsStrippingWriter(w)
	sw.Header().Set(RequestIDHeader, reqID)

	var metadataOK *bool
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			logger.Error("Handler panic", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			if !sw.wroteHeader {
				http.Error(sw, "internal error", http.StatusInternalServerError)
			} else {
				sw.status = http.StatusInternalServerError
			}
		}
		h.finish(logger, db.RequestEntry{
			RequestID:  reqID,
			Method:     r.Method,
			Path:       r.URL.Path,
			Route:      route.Name(),
			Status:     sw.status,
			MetadataOK: metadataOK,
			Duration:   h.now().Sub(start),
		})
	}()

	switch rt := route.(type) {
	case ServiceWorkerRoute:
		h.serveServiceWorker(sw, r, logger)
	case PageRoute:
		metadataOK = h.servePage(sw, r, rt.Rule, logger)
	case PageDataRoute:
		metadataOK = h.servePageData(sw, r, logger)
	case PassthroughRoute:
		h.passthrough.ServeHTTP(sw, r)
	}
}

func (h *Handler) finish(logger *slog.Logger, e db.RequestEntry) {
	h.metrics.Requests.WithLabelValues(e.Route).Inc()
	logger.Info("Request handled", "status", e.Status, "duration_ms", e.Duration.Milliseconds())
	if h.recorder == nil {
		return
	}
	if err := h.recorder.RecordRequest(e); err != nil {
		logger.Warn("Failed to record request", "error", err)
	}
}

func (h *Handler) serveServiceWorker(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	now := h.now()
	script := serviceworker.Fallback()

	upstream, err := h.fetchWorker(r, now)
	if err != nil {
		logger.Warn("Serving fallback service worker", "error", err)
	} else {
		version := serviceworker.ResolveVersion(h.cfg.ServiceWorker, upstream, now)
		script = serviceworker.Synthesize(version)
	}

	w.Header().Set("Content-Type", serviceworker.ContentType)
	w.Header().Set("Cache-Control", serviceworker.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(script)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(script)
}

// fetchWorker loads the upstream script with a cache buster so edge caches
// in front of the origin cannot hand back a stale copy.
func (h *Handler) fetchWorker(r *http.Request, now time.Time) ([]byte, error) {
	query := url.Values{"cb": {strconv.FormatInt(now.UnixMilli(), 10)}}.Encode()
	resp, err := h.origin.Get(r.Context(), r.URL.Path, query, nil)
	if err != nil {
		h.metrics.OriginFailures.Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("origin returned status %d", resp.StatusCode)
	}
	body, err := origin.DecodedBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	script, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read service worker: %w", err)
	}
	return script, nil
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, rule matcher.Rule, logger *slog.Logger) *bool {
	ctx := r.Context()

	var (
		resp    *http.Response
		meta    *models.PageMetadata
		metaErr error
		g       errgroup.Group
	)
	g.Go(func() error {
		var err error
		resp, err = h.origin.Get(ctx, r.URL.Path, r.URL.RawQuery, rewritableRequestHeader(r.Header))
		return err
	})
	g.Go(func() error {
		meta, metaErr = h.metadata.Fetch(ctx, r.URL.Path, rule.MetadataEndpoint)
		return nil
	})
	if err := g.Wait(); err != nil {
		h.originFailed(w, logger, err)
		return nil
	}
	defer resp.Body.Close()

	ok := h.checkMetadata(logger, metaErr)
	if !ok {
		meta = &models.PageMetadata{}
	}

	if !isRewritable(resp) || !isHTML(resp.Header) {
		copyResponse(w, resp, logger)
		return &ok
	}

	body, err := origin.DecodedBody(resp)
	if err != nil {
		logger.Warn("Cannot decode page, serving it unmodified", "error", err)
		copyResponse(w, resp, logger)
		return &ok
	}
	defer body.Close()

	origin.CopyHeader(w.Header(), resp.Header)
	// The rewritten body no longer matches the origin's length or validators.
	w.Header().Del("Content-Length")
	dropValidators(w.Header())
	w.WriteHeader(resp.StatusCode)

	err = rewriter.Rewrite(w, body, h.seo.Visitor(meta), rewriter.Options{
		Logger: logger,
		OnError: func(string, error) {
			h.metrics.TransformErrors.Inc()
		},
	})
	if err != nil {
		logger.Warn("Page stream ended early", "error", err)
	}
	return &ok
}

func (h *Handler) servePageData(w http.ResponseWriter, r *http.Request, logger *slog.Logger) *bool {
	ctx := r.Context()
	// The same URL is served patched or not depending on the page asking.
	w.Header().Add("Vary", "Referer")

	refPath, rule, matched := h.refererRule(r)
	if !matched {
		resp, err := h.origin.Get(ctx, r.URL.Path, r.URL.RawQuery, r.Header)
		if err != nil {
			h.originFailed(w, logger, err)
			return nil
		}
		defer resp.Body.Close()
		copyResponse(w, resp, logger)
		return nil
	}

	var (
		resp    *http.Response
		meta    *models.PageMetadata
		metaErr error
		g       errgroup.Group
	)
	g.Go(func() error {
		var err error
		resp, err = h.origin.Get(ctx, r.URL.Path, r.URL.RawQuery, rewritableRequestHeader(r.Header))
		return err
	})
	g.Go(func() error {
		meta, metaErr = h.metadata.Fetch(ctx, refPath, rule.MetadataEndpoint)
		return nil
	})
	if err := g.Wait(); err != nil {
		h.originFailed(w, logger, err)
		return nil
	}
	defer resp.Body.Close()

	ok := h.checkMetadata(logger, metaErr)
	if !ok || !isRewritable(resp) {
		copyResponse(w, resp, logger)
		return &ok
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.originFailed(w, logger, fmt.Errorf("%w: %v", origin.ErrOriginUnavailable, err))
		return &ok
	}
	header := resp.Header.Clone()

	patched, err := h.patchPageData(resp, raw, meta)
	if err != nil {
		logger.Warn("Serving page data unmodified", "error", err)
		writeBody(w, resp.StatusCode, header, raw)
		return &ok
	}
	resp.Header.Set("Content-Type", "application/json")
	dropValidators(resp.Header)
	writeBody(w, resp.StatusCode, resp.Header, patched)
	return &ok
}

func (h *Handler) patchPageData(resp *http.Response, raw []byte, meta *models.PageMetadata) ([]byte, error) {
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	body, err := origin.DecodedBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	decoded, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page data body: %w", err)
	}

	doc, err := pagedata.Decode(decoded)
	if err != nil {
		return nil, err
	}
	return pagedata.Encode(pagedata.Patch(doc, meta, h.cfg.Language))
}

// refererRule finds the rule for the page that requested a page-data asset.
func (h *Handler) refererRule(r *http.Request) (string, matcher.Rule, bool) {
	referer := r.Header.Get("Referer")
	if referer == "" {
		return "", matcher.Rule{}, false
	}
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" {
		return "", matcher.Rule{}, false
	}
	path := matcher.NormalizePath(u.Path)
	rule, ok := h.matcher.Match(path)
	return path, rule, ok
}

func (h *Handler) checkMetadata(logger *slog.Logger, err error) bool {
	if err == nil {
		return true
	}
	h.metrics.MetadataFailures.Inc()
	logger.Warn("Metadata unavailable, serving original tags", "error", err)
	return false
}

func (h *Handler) originFailed(w http.ResponseWriter, logger *slog.Logger, err error) {
	h.metrics.OriginFailures.Inc()
	logger.Error("Origin fetch failed", "error", err)
	http.Error(w, origin.ErrOriginUnavailable.Error(), http.StatusBadGateway)
}

// copyResponse streams resp to w as the origin sent it.
func copyResponse(w http.ResponseWriter, resp *http.Response, logger *slog.Logger) {
	origin.CopyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Warn("Failed to copy origin body", "error", err)
	}
}

func writeBody(w http.ResponseWriter, status int, header http.Header, body []byte) {
	origin.CopyHeader(w.Header(), header)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// rewritableRequestHeader strips the range and conditional headers from a
// request whose response may be rewritten, so the origin always answers with
// the full representation.
func rewritableRequestHeader(in http.Header) http.Header {
	out := in.Clone()
	for _, k := range []string{"Range", "If-Range", "If-None-Match", "If-Modified-Since"} {
		out.Del(k)
	}
	return out
}

// isRewritable reports whether resp carries a full 2xx body.
func isRewritable(resp *http.Response) bool {
	return isSuccess(resp.StatusCode) && resp.StatusCode != http.StatusPartialContent
}

// dropValidators removes the origin's validators from a rewritten response.
func dropValidators(h http.Header) {
	h.Del("Etag")
	h.Del("Last-Modified")
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func isHTML(h http.Header) bool {
	ct := strings.ToLower(h.Get("Content-Type"))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
