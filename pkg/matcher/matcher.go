package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dtnitsch/seo-edge-proxy/models"
	"github.com/google/uuid"
)

// pageDataPattern is the builder's per-page JSON asset: /public/data/<uuid>.json
var pageDataPattern = regexp.MustCompile(`^/public/data/([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})\.json$`)

// Rule is a RouteRule with its pattern compiled.
type Rule struct {
	models.RouteRule
	re *regexp.Regexp
}

// Matcher holds the ordered, compiled rule list. Safe for concurrent use.
type Matcher struct {
	rules []Rule
}

// Compile compiles every rule pattern, keeping declaration order.
func Compile(rules []models.RouteRule) (*Matcher, error) {
	m := &Matcher{rules: make([]Rule, 0, len(rules))}
	for i, r := range rules {
		re, err := regexp.Compile(r.PathPattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %d (%q): %w", i, r.PathPattern, err)
		}
		m.rules = append(m.rules, Rule{RouteRule: r, re: re})
	}
	return m, nil
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Match returns the first rule whose pattern matches anywhere in the
// normalized path. Earlier rules take priority over later ones.
func (m *Matcher) Match(path string) (Rule, bool) {
	normalized := NormalizePath(path)
	for _, r := range m.rules {
		if r.re.MatchString(normalized) {
			return r, true
		}
	}
	return Rule{}, false
}

// NormalizePath ensures the path ends with exactly one trailing slash
// appended when missing.
func NormalizePath(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// IsPageData reports whether path is a page-data JSON request.
func IsPageData(path string) bool {
	m := pageDataPattern.FindStringSubmatch(path)
	if m == nil {
		return false
	}
	_, err := uuid.Parse(m[1])
	return err == nil
}
