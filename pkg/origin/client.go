// Package origin talks to the site-builder origin the proxy sits in front of.
package origin

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
)

var ErrOriginUnavailable = errors.New("origin unavailable")

// hopByHop headers are never forwarded in either direction.
var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
}

type Client struct {
	base   *url.URL
	client *http.Client
}

// NewClient returns a client for the origin at base. A nil client uses a
// zero http.Client.
func NewClient(base string, client *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin URL %q", base)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{base: u, client: client}, nil
}

// Base returns the origin URL.
func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

// URL joins path and rawQuery onto the origin base.
func (c *Client) URL(path, rawQuery string) string {
	u := c.Base()
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

// Get fetches path from the origin, forwarding the end-to-end headers of the
// inbound request. The body is always requested uncompressed or in an
// encoding DecodedBody understands. Any status is returned to the caller;
// only transport failures produce ErrOriginUnavailable.
func (c *Client) Get(ctx context.Context, path, rawQuery string, in http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, rawQuery), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build origin request: %w", err)
	}
	CopyHeader(req.Header, in)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOriginUnavailable, err)
	}
	return resp, nil
}

// CopyHeader adds src to dst, skipping hop-by-hop headers and any header
// named in src's Connection value.
func CopyHeader(dst, src http.Header) {
	named := make(map[string]bool)
	for _, v := range src["Connection"] {
		for _, name := range strings.Split(v, ",") {
			named[http.CanonicalHeaderKey(strings.TrimSpace(name))] = true
		}
	}
	for key, values := range src {
		if hopByHop[key] || named[key] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedBody) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// DecodedBody returns resp's body with any br or gzip Content-Encoding
// removed. When it decodes, the Content-Encoding and Content-Length headers
// are dropped from resp since they no longer describe the bytes.
func DecodedBody(resp *http.Response) (io.ReadCloser, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "br":
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		return &decodedBody{Reader: brotli.NewReader(resp.Body), closers: []io.Closer{resp.Body}}, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		return &decodedBody{Reader: zr, closers: []io.Closer{zr, resp.Body}}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

// NewPassthrough returns a reverse proxy that forwards requests to the
// origin unchanged and strips X-Robots-Tag from the response.
func NewPassthrough(c *Client, logger *slog.Logger) *httputil.ReverseProxy {
	if logger == nil {
		logger = slog.Default()
	}
	target := c.Base()
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
	}
	proxy.Transport = c.client.Transport
	proxy.ModifyResponse = func(resp *http.Response) error {
		resp.Header.Del("X-Robots-Tag")
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("Passthrough failed", "path", r.URL.Path, "error", err)
		http.Error(w, ErrOriginUnavailable.Error(), http.StatusBadGateway)
	}
	return proxy
}
