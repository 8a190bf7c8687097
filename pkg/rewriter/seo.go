package rewriter

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dtnitsch/seo-edge-proxy/models"
)

const (
	ViewportContent       = "width=device-width, initial-scale=1.0, maximum-scale=1.0, user-scalable=no"
	AppleCapableContent   = "yes"
	AppleStatusBarContent = "black"

	metaViewport       = "viewport"
	metaAppleCapable   = "apple-mobile-web-app-capable"
	metaAppleStatusBar = "apple-mobile-web-app-status-bar-style"
)

const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

// metadataField selects one PageMetadata value.
type metadataField func(*models.PageMetadata) string

func title(m *models.PageMetadata) string       { return m.Title }
func description(m *models.PageMetadata) string { return m.Description }
func image(m *models.PageMetadata) string       { return m.Image }
func keywords(m *models.PageMetadata) string    { return m.Keywords }

var (
	byName = map[string]metadataField{
		"title":               title,
		"description":         description,
		"image":               image,
		"keywords":            keywords,
		"twitter:title":       title,
		"twitter:description": description,
	}
	byItemprop = map[string]metadataField{
		"name":        title,
		"description": description,
		"image":       image,
	}
	byProperty = map[string]metadataField{
		"og:title":       title,
		"og:description": description,
		"og:image":       image,
	}
)

// RewriteState tracks which mobile meta tags the document already carries.
// Flags only ever go from false to true within one pass.
type RewriteState struct {
	ViewportSeen       bool
	AppleCapableSeen   bool
	AppleStatusBarSeen bool
}

// SEOOptions carries the site-wide settings for the SEO rules.
type SEOOptions struct {
	CanonicalDomain   string
	PreviewHostSuffix string
	FaviconURL        string
	FaviconCacheBust  bool
	// Now stamps the favicon cache buster; defaults to time.Now.
	Now func() time.Time
}

// SEORules is the compiled, shareable form of SEOOptions.
type SEORules struct {
	opts    SEOOptions
	preview *regexp.Regexp
}

func NewSEORules(opts SEOOptions) *SEORules {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &SEORules{opts: opts}
	if opts.PreviewHostSuffix != "" && opts.CanonicalDomain != "" {
		r.preview = regexp.MustCompile(uuidPattern + `\.` + regexp.QuoteMeta(strings.TrimPrefix(opts.PreviewHostSuffix, ".")))
	}
	return r
}

// Visitor returns a fresh visitor for one response. meta may be nil.
func (r *SEORules) Visitor(meta *models.PageMetadata) *SEOVisitor {
	if meta == nil {
		meta = &models.PageMetadata{}
	}
	return &SEOVisitor{rules: r, meta: meta}
}

// SEOVisitor injects page metadata into head elements and guarantees the
// three mobile meta tags.
type SEOVisitor struct {
	rules *SEORules
	meta  *models.PageMetadata
	State RewriteState
	// headClosed is set once the defaults have been emitted.
	headClosed bool
}

func (v *SEOVisitor) OnElement(el *Element) error {
	switch el.Tag {
	case "title":
		// Titles after the head belong to inline SVG and the like.
		if v.meta.Title != "" && !v.headClosed {
			el.SetInnerText(v.meta.Title)
		}
	case "meta":
		v.metaTag(el)
	case "link":
		return v.linkTag(el)
	}
	return nil
}

func (v *SEOVisitor) metaTag(el *Element) {
	name, _ := el.Attribute("name")
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case metaViewport:
		mobileMeta(el, &v.State.ViewportSeen, ViewportContent)
		return
	case metaAppleStatusBar:
		mobileMeta(el, &v.State.AppleStatusBarSeen, AppleStatusBarContent)
		return
	case metaAppleCapable:
		mobileMeta(el, &v.State.AppleCapableSeen, AppleCapableContent)
		return
	case "robots":
		content, _ := el.Attribute("content")
		if strings.Contains(strings.ToLower(content), "noindex") {
			el.Remove()
			return
		}
	}

	if field, ok := byName[name]; ok {
		v.setContent(el, field)
	}
	if itemprop, ok := el.Attribute("itemprop"); ok {
		if field, ok := byItemprop[strings.ToLower(itemprop)]; ok {
			v.setContent(el, field)
		}
	}
	if property, ok := el.Attribute("property"); ok {
		if field, ok := byProperty[strings.ToLower(property)]; ok {
			v.setContent(el, field)
		}
	}
}

// mobileMeta keeps the first occurrence of a mobile meta tag, pinned to
// content, and drops any later one.
func mobileMeta(el *Element, seen *bool, content string) {
	if *seen {
		el.Remove()
		return
	}
	el.SetAttribute("content", content)
	*seen = true
}

func (v *SEOVisitor) setContent(el *Element, field metadataField) {
	if value := field(v.meta); value != "" {
		el.SetAttribute("content", value)
	}
}

func (v *SEOVisitor) linkTag(el *Element) error {
	rel, _ := el.Attribute("rel")
	switch strings.ToLower(strings.TrimSpace(rel)) {
	case "alternate":
		if v.rules.preview == nil {
			return nil
		}
		href, ok := el.Attribute("href")
		if !ok || !v.rules.preview.MatchString(href) {
			return nil
		}
		el.SetAttribute("href", v.rules.preview.ReplaceAllLiteralString(href, v.rules.opts.CanonicalDomain))
	case "icon", "shortcut icon":
		if v.rules.opts.FaviconURL == "" {
			return nil
		}
		href, err := v.rules.faviconHref()
		if err != nil {
			return err
		}
		el.SetAttribute("href", href)
	}
	return nil
}

func (r *SEORules) faviconHref() (string, error) {
	if !r.opts.FaviconCacheBust {
		return r.opts.FaviconURL, nil
	}
	u, err := url.Parse(r.opts.FaviconURL)
	if err != nil {
		return "", fmt.Errorf("invalid favicon URL %q: %w", r.opts.FaviconURL, err)
	}
	q := u.Query()
	q.Set("v", strconv.FormatInt(r.opts.Now().Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OnHeadEnd returns the default mobile meta tags the document lacked, in the
// order viewport, capable, status bar.
func (v *SEOVisitor) OnHeadEnd() []Element {
	v.headClosed = true
	var out []Element
	if !v.State.ViewportSeen {
		out = append(out, NewElement("meta", "name", metaViewport, "content", ViewportContent))
		v.State.ViewportSeen = true
	}
	if !v.State.AppleCapableSeen {
		out = append(out, NewElement("meta", "name", metaAppleCapable, "content", AppleCapableContent))
		v.State.AppleCapableSeen = true
	}
	if !v.State.AppleStatusBarSeen {
		out = append(out, NewElement("meta", "name", metaAppleStatusBar, "content", AppleStatusBarContent))
		v.State.AppleStatusBarSeen = true
	}
	return out
}
