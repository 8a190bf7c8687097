// Package inspect reports the SEO-relevant tags of a served page, so an
// operator can check what crawlers see through the proxy.
package inspect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// topKeywordCount is how many body words a report lists.
const topKeywordCount = 10

// Alternate is one <link rel="alternate"> entry.
type Alternate struct {
	Hreflang string `json:"hreflang,omitempty" yaml:"hreflang,omitempty"`
	Href     string `json:"href" yaml:"href"`
}

type Report struct {
	URL            string            `json:"url" yaml:"url"`
	Status         int               `json:"status,omitempty" yaml:"status,omitempty"`
	RobotsHeader   string            `json:"robots_header,omitempty" yaml:"robots_header,omitempty"`
	Title          string            `json:"title" yaml:"title"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords       string            `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Image          string            `json:"image,omitempty" yaml:"image,omitempty"`
	OpenGraph      map[string]string `json:"open_graph,omitempty" yaml:"open_graph,omitempty"`
	Twitter        map[string]string `json:"twitter,omitempty" yaml:"twitter,omitempty"`
	Itemprop       map[string]string `json:"itemprop,omitempty" yaml:"itemprop,omitempty"`
	Robots         []string          `json:"robots,omitempty" yaml:"robots,omitempty"`
	Viewport       string            `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	AppleCapable   string            `json:"apple_capable,omitempty" yaml:"apple_capable,omitempty"`
	AppleStatusBar string            `json:"apple_status_bar,omitempty" yaml:"apple_status_bar,omitempty"`
	Favicons       []string          `json:"favicons,omitempty" yaml:"favicons,omitempty"`
	Alternates     []Alternate       `json:"alternates,omitempty" yaml:"alternates,omitempty"`

	// Filled from the readable article when the page has one.
	SiteName  string `json:"site_name,omitempty" yaml:"site_name,omitempty"`
	Excerpt   string `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	LeadImage string `json:"lead_image,omitempty" yaml:"lead_image,omitempty"`

	Language    string   `json:"language,omitempty" yaml:"language,omitempty"`
	TopKeywords []string `json:"top_keywords,omitempty" yaml:"top_keywords,omitempty"`
	Issues      []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// Expectations are what a correctly proxied page should look like.
type Expectations struct {
	CanonicalDomain   string
	PreviewHostSuffix string
}

// Fetch downloads rawURL and analyzes it.
func Fetch(ctx context.Context, client *http.Client, rawURL string, exp Expectations) (*Report, error) {
	if client == nil {
		client = &http.Client{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	report, err := Analyze(rawURL, body, exp)
	if err != nil {
		return nil, err
	}
	report.Status = resp.StatusCode
	report.RobotsHeader = resp.Header.Get("X-Robots-Tag")
	if report.RobotsHeader != "" {
		report.Issues = append(report.Issues, "X-Robots-Tag header present: "+report.RobotsHeader)
	}
	return report, nil
}

// Analyze extracts the SEO tags from an HTML document.
func Analyze(rawURL string, body []byte, exp Expectations) (*Report, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	r := &Report{
		URL:       rawURL,
		Title:     strings.TrimSpace(doc.Find("head title").First().Text()),
		OpenGraph: map[string]string{},
		Twitter:   map[string]string{},
		Itemprop:  map[string]string{},
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := s.AttrOr("content", "")
		if prop, ok := s.Attr("property"); ok && strings.HasPrefix(prop, "og:") {
			r.OpenGraph[prop] = content
		}
		if prop, ok := s.Attr("itemprop"); ok {
			r.Itemprop[prop] = content
		}

		name := strings.ToLower(s.AttrOr("name", ""))
		switch {
		case name == "description":
			r.Description = content
		case name == "keywords":
			r.Keywords = content
		case name == "image":
			r.Image = content
		case name == "robots":
			r.Robots = append(r.Robots, content)
		case name == "viewport":
			r.Viewport = content
		case name == "apple-mobile-web-app-capable":
			r.AppleCapable = content
		case name == "apple-mobile-web-app-status-bar-style":
			r.AppleStatusBar = content
		case strings.HasPrefix(name, "twitter:"):
			r.Twitter[name] = content
		}
	})

	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		switch strings.ToLower(strings.TrimSpace(s.AttrOr("rel", ""))) {
		case "icon", "shortcut icon":
			r.Favicons = append(r.Favicons, href)
		case "alternate":
			r.Alternates = append(r.Alternates, Alternate{Hreflang: s.AttrOr("hreflang", ""), Href: href})
		}
	})

	addArticle(r, rawURL, body)
	r.Language = DetectLanguage(r.Title, r.Description, r.Excerpt)
	if body := doc.Find("body"); body.Length() > 0 {
		r.TopKeywords = TopKeywords(WordFrequency(visibleText(body.Nodes[0])), topKeywordCount)
	}
	r.Issues = append(r.Issues, r.check(exp)...)
	return r, nil
}

// addArticle fills the readability fields. Pages without a readable
// article simply leave them empty.
func addArticle(r *Report, rawURL string, body []byte) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(body), pageURL)
	if err != nil {
		return
	}
	r.SiteName = article.SiteName
	r.Excerpt = strings.TrimSpace(article.Excerpt)
	r.LeadImage = article.Image
}

// visibleText joins the text nodes under n with spaces, skipping scripts and
// styles. goquery's Text() glues adjacent elements together.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func (r *Report) check(exp Expectations) []string {
	var issues []string
	if r.Title == "" {
		issues = append(issues, "missing <title>")
	}
	if r.Description == "" {
		issues = append(issues, `missing <meta name="description">`)
	}
	for _, content := range r.Robots {
		if strings.Contains(strings.ToLower(content), "noindex") {
			issues = append(issues, "robots meta blocks indexing: "+content)
		}
	}
	if r.Viewport == "" {
		issues = append(issues, "missing viewport meta")
	}
	if r.AppleCapable == "" || r.AppleStatusBar == "" {
		issues = append(issues, "missing apple mobile web app meta")
	}
	if exp.PreviewHostSuffix != "" {
		for _, alt := range r.Alternates {
			if strings.Contains(alt.Href, exp.PreviewHostSuffix) {
				issues = append(issues, "alternate link points at preview host: "+alt.Href)
			}
		}
	}
	if exp.CanonicalDomain != "" {
		for _, icon := range r.Favicons {
			u, err := url.Parse(icon)
			if err != nil || u.Host != exp.CanonicalDomain {
				issues = append(issues, "favicon not served from "+exp.CanonicalDomain+": "+icon)
			}
		}
	}
	return issues
}
