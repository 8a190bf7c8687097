// Package models defines data structures for configuration and page metadata.
package models

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Service worker version policies.
const (
	VersionPolicyTimestamp = "timestamp" // unix millis at synthesis time
	VersionPolicyFixed     = "fixed"     // ServiceWorkerConfig.Version verbatim
	VersionPolicyUpstream  = "upstream"  // copied from the upstream script, timestamp if missing
)

const (
	DefaultLanguage          = "en"
	DefaultServiceWorkerPath = "/serviceworker.js"
	DefaultTimeout           = 15 * time.Second
)

// placeholderPattern matches the single {name} token in a metadata endpoint template.
var placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)

// ProxyConfig is the static configuration loaded once at startup.
// It is never mutated after Validate returns.
type ProxyConfig struct {
	Origin            string              `yaml:"origin"`
	CanonicalDomain   string              `yaml:"canonical_domain"`
	PreviewHostSuffix string              `yaml:"preview_host_suffix"`
	FaviconURL        string              `yaml:"favicon_url"`
	FaviconCacheBust  bool                `yaml:"favicon_cache_bust"`
	Language          string              `yaml:"language"`
	Timeout           time.Duration       `yaml:"timeout"`
	ServiceWorker     ServiceWorkerConfig `yaml:"service_worker"`
	Routes            []RouteRule         `yaml:"routes"`
}

// ServiceWorkerConfig controls how the builder's service worker is replaced.
type ServiceWorkerConfig struct {
	Paths         []string `yaml:"paths"`
	VersionPolicy string   `yaml:"version_policy"`
	Version       string   `yaml:"version"`
}

// RouteRule pairs a path regexp with the metadata endpoint for pages it matches.
type RouteRule struct {
	PathPattern      string `yaml:"pattern" json:"pattern"`
	MetadataEndpoint string `yaml:"metadata_endpoint" json:"metadata_endpoint"`
}

// LoadConfig reads a YAML config file, applies defaults and validates it.
func LoadConfig(path string) (*ProxyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config bytes, applies defaults and validates.
func ParseConfig(data []byte) (*ProxyConfig, error) {
	var cfg ProxyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills optional fields left empty in the file.
func (c *ProxyConfig) ApplyDefaults() {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if len(c.ServiceWorker.Paths) == 0 {
		c.ServiceWorker.Paths = []string{DefaultServiceWorkerPath}
	}
	if c.ServiceWorker.VersionPolicy == "" {
		c.ServiceWorker.VersionPolicy = VersionPolicyTimestamp
	}
	if c.CanonicalDomain == "" && c.Origin != "" {
		if u, err := url.Parse(c.Origin); err == nil {
			c.CanonicalDomain = u.Host
		}
	}
	if c.FaviconURL == "" && c.CanonicalDomain != "" {
		c.FaviconURL = "https://" + c.CanonicalDomain + "/favicon.ico"
	}
}

// Validate checks the invariants the proxy relies on.
func (c *ProxyConfig) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("origin must be an absolute URL, got %q", c.Origin)
	}

	switch c.ServiceWorker.VersionPolicy {
	case VersionPolicyTimestamp, VersionPolicyUpstream:
	case VersionPolicyFixed:
		if c.ServiceWorker.Version == "" {
			return fmt.Errorf("service_worker.version is required with the %q policy", VersionPolicyFixed)
		}
	default:
		return fmt.Errorf("unknown service_worker.version_policy %q", c.ServiceWorker.VersionPolicy)
	}

	for i, r := range c.Routes {
		if _, err := regexp.Compile(r.PathPattern); err != nil {
			return fmt.Errorf("routes[%d]: invalid pattern %q: %w", i, r.PathPattern, err)
		}
		if n := len(placeholderPattern.FindAllString(r.MetadataEndpoint, -1)); n != 1 {
			return fmt.Errorf("routes[%d]: metadata_endpoint must contain exactly one {placeholder}, found %d", i, n)
		}
	}
	return nil
}
