package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/dtnitsch/seo-edge-proxy/models"
)

// ErrMetadataUnavailable is returned when the metadata API cannot be reached,
// answers with a non-2xx status, or returns a body that is not JSON.
var ErrMetadataUnavailable = errors.New("metadata unavailable")

var placeholder = regexp.MustCompile(`\{[^{}]*\}`)

// Fetcher loads page metadata from the content API.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher using client, or a default client when nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client}
}

// ResourceID returns the last non-empty path segment after dropping one
// trailing slash.
func ResourceID(path string) string {
	path = strings.TrimSuffix(path, "/")
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// EndpointURL substitutes id for the first {placeholder} in template.
func EndpointURL(template, id string) string {
	loc := placeholder.FindStringIndex(template)
	if loc == nil {
		return template
	}
	return template[:loc[0]] + id + template[loc[1]:]
}

// Fetch loads the metadata for the page at path from the endpoint template.
func (f *Fetcher) Fetch(ctx context.Context, path, template string) (*models.PageMetadata, error) {
	endpoint := EndpointURL(template, ResourceID(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrMetadataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to make HTTP request: %v", ErrMetadataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status code %d from %s", ErrMetadataUnavailable, resp.StatusCode, endpoint)
	}

	var meta models.PageMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrMetadataUnavailable, err)
	}
	return &meta, nil
}
