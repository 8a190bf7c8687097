// Package serviceworker replaces the site builder's service worker with a
// minimal pass-through worker that cannot pin clients to a stale deploy.
package serviceworker

import (
	"bytes"
	"regexp"
	"strconv"
	"text/template"
	"time"

	"github.com/dtnitsch/seo-edge-proxy/models"
)

const (
	ContentType  = "application/javascript"
	CacheControl = "no-cache, no-store, must-revalidate"
)

// versionMarker finds `const version = 456` / `var VERSION = "v457"` style
// declarations in an upstream worker.
var versionMarker = regexp.MustCompile(`(?i)\b(?:const|let|var)\s+(?:sw_?)?version\s*=\s*["']?v?([0-9A-Za-z._-]+)["']?`)

var workerTemplate = template.Must(template.New("sw").Parse(`// Generated by seo-edge-proxy. Replaces the builder worker for custom domain use.
const version = {{.Version}};

self.addEventListener('install', event => {
    console.log('SW v' + version + ' installed');
    self.skipWaiting();
});

self.addEventListener('activate', event => {
    console.log('SW v' + version + ' activated');
    event.waitUntil(
        caches.keys()
            .then(names => Promise.all(
                names
                    .filter(name => !name.includes('v' + version))
                    .map(name => caches.delete(name))
            ))
            .catch(() => undefined)
            .then(() => self.clients.claim())
    );
});

self.addEventListener('fetch', event => {
    const method = event.request.method;
    if (method === 'POST' || method === 'PUT' || method === 'DELETE') {
        return;
    }
    if (method !== 'GET' || !event.request.url.startsWith(self.location.origin)) {
        return;
    }
    event.respondWith(
        fetch(event.request)
            .then(response => {
                if (response.status >= 200 && response.status < 300) {
                    return response;
                }
                throw new Error('Bad response');
            })
            .catch(() => fetch(event.request))
            .catch(() => Response.error())
    );
});
`))

// fallback is served when the upstream worker cannot be fetched.
const fallback = `// seo-edge-proxy fallback worker
self.addEventListener('install', () => {
    console.log('SW fallback installed');
    self.skipWaiting();
});

self.addEventListener('activate', event => {
    console.log('SW fallback activated');
    event.waitUntil(self.clients.claim());
});

self.addEventListener('fetch', event => {
    const method = event.request.method;
    if (method !== 'GET' || !event.request.url.startsWith(self.location.origin)) {
        return;
    }
    event.respondWith(fetch(event.request).catch(() => Response.error()));
});
`

// Synthesize renders the replacement worker for version.
func Synthesize(version string) []byte {
	var buf bytes.Buffer
	// The template only interpolates a quoted string; Execute cannot fail.
	_ = workerTemplate.Execute(&buf, struct{ Version string }{strconv.Quote(version)})
	return buf.Bytes()
}

// Fallback returns the hardcoded minimal worker.
func Fallback() []byte {
	return []byte(fallback)
}

// ExtractVersion returns the version declared in an upstream worker script.
func ExtractVersion(script []byte) (string, bool) {
	m := versionMarker.FindSubmatch(script)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// ResolveVersion picks the version for a synthesis under cfg's policy.
// The timestamp policy, and upstream when no marker is found, produce a new
// value on every call.
func ResolveVersion(cfg models.ServiceWorkerConfig, upstream []byte, now time.Time) string {
	switch cfg.VersionPolicy {
	case models.VersionPolicyFixed:
		return cfg.Version
	case models.VersionPolicyUpstream:
		if v, ok := ExtractVersion(upstream); ok {
			return v
		}
	}
	return strconv.FormatInt(now.UnixMilli(), 10)
}
