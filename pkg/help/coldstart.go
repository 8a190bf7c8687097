package help

const ColdstartYAML = `# seo-edge-proxy Quick Start

what_it_does:
  - "Reverse proxy in front of a WeWeb site"
  - "Injects per-page SEO metadata from your content API into HTML and page-data JSON"
  - "Replaces the builder's service worker with a pass-through one"
  - "Points favicon and hreflang links at the production domain"
  - "Removes noindex robots meta tags and X-Robots-Tag headers"

routes:
  service_worker: "GET on a service_worker.paths entry: synthesized worker, fallback if origin is down"
  page: "GET matching a routes[].pattern: origin HTML rewritten with fetched metadata"
  page_data: "GET /public/data/<uuid>.json: patched when the Referer page matches a pattern"
  passthrough: "Everything else, including non-GET: forwarded unchanged"

commands:
  serve: |
    seo-edge-proxy serve --config config.yaml --listen :8080 --admin-listen :9090

  check_routes: |
    seo-edge-proxy routes --config config.yaml /recipe/abc123 /about

  inspect_page: |
    seo-edge-proxy inspect --url http://localhost:8080/recipe/abc123 --config config.yaml

  inspect_fields: |
    seo-edge-proxy inspect --url http://localhost:8080/recipe/abc123 --fields title,issues --format yaml

  print_worker: |
    seo-edge-proxy worker --config config.yaml

  recent_requests: |
    seo-edge-proxy db requests --limit 50

  route_stats: |
    seo-edge-proxy db stats

config_keys:
  origin: "WeWeb app URL (required)"
  canonical_domain: "Production host, defaults to the origin host"
  preview_host_suffix: "Preview host suffix rewritten out of hreflang links"
  favicon_url: "Defaults to https://<canonical_domain>/favicon.ico"
  favicon_cache_bust: "Append ?v=<unix seconds> to the favicon URL"
  language: "Key used in page-data language maps (default en)"
  timeout: "Outbound request timeout (default 15s)"
  service_worker: "paths, version_policy (timestamp|fixed|upstream), version"
  routes: "Ordered list of {pattern, metadata_endpoint}; first match wins"

invariants:
  - "Every metadata_endpoint has exactly one {placeholder}, filled with the last path segment"
  - "Metadata failures never fail a request; pages are served with their original tags"
  - "Origin unreachable: 502 origin unavailable"

admin:
  healthz: "GET /healthz on --admin-listen"
  metrics: "GET /metrics on --admin-listen (Prometheus)"

error_behavior:
  - "Invalid config: serve exits before listening"
  - "Request log write failures are logged and ignored"
  - "Exit codes: 0=success, 1=error"
`
