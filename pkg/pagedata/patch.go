// Package pagedata overlays page metadata onto the builder's per-page JSON
// asset (/public/data/<uuid>.json).
package pagedata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dtnitsch/seo-edge-proxy/models"
)

// Patch ensures page.{title,meta.desc,meta.keywords,socialTitle,socialDesc}
// exist as objects and writes each present metadata field under lang.
// Existing siblings are left alone. doc is mutated and returned; a nil doc
// starts from an empty object.
func Patch(doc map[string]any, meta *models.PageMetadata, lang string) map[string]any {
	if doc == nil {
		doc = map[string]any{}
	}
	if lang == "" {
		lang = models.DefaultLanguage
	}
	if meta == nil {
		meta = &models.PageMetadata{}
	}

	page := child(doc, "page")
	titles := child(page, "title")
	pageMeta := child(page, "meta")
	desc := child(pageMeta, "desc")
	kw := child(pageMeta, "keywords")
	socialTitle := child(page, "socialTitle")
	socialDesc := child(page, "socialDesc")

	if meta.Title != "" {
		titles[lang] = meta.Title
		socialTitle[lang] = meta.Title
	}
	if meta.Description != "" {
		desc[lang] = meta.Description
		socialDesc[lang] = meta.Description
	}
	if meta.Image != "" {
		page["metaImage"] = meta.Image
	}
	if meta.Keywords != "" {
		kw[lang] = meta.Keywords
	}
	return doc
}

// child returns parent[key] as an object, creating it when missing or when
// the existing value is not an object.
func child(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}

// Decode parses a page-data body, keeping numbers as json.Number so they are
// re-encoded exactly.
func Decode(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode page data: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("failed to decode page data: not a JSON object")
	}
	return doc, nil
}

// Encode serializes a patched document without HTML escaping.
func Encode(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode page data: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
