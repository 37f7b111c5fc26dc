package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// Policy decides how a cascade combines the values its selectors produce.
type Policy int

const (
	// FirstMatch stops at the first selector that yields an accepted value.
	FirstMatch Policy = iota
	// UnionAll collects every accepted value from every selector, in order.
	UnionAll
)

func (p Policy) String() string {
	switch p {
	case FirstMatch:
		return "first_match"
	case UnionAll:
		return "union_all"
	default:
		return "unknown"
	}
}

// ValueFunc reads the candidate value out of a matched element.
type ValueFunc func(s *goquery.Selection) string

// Selector is one step of a cascade. When Child is set, the value is read
// from the first Child element inside each Query match.
type Selector struct {
	Query string
	Child string
	Value ValueFunc
}

// Cascade is an ordered list of selectors for one field.
type Cascade struct {
	Field     string
	Policy    Policy
	Selectors []Selector
	// Accept normalizes a candidate and reports whether it is usable.
	// Nil accepts any non-empty value.
	Accept func(string) (string, bool)
}

// Run evaluates the cascade against doc. Under FirstMatch only the first
// element of each selector is considered and at most one value is returned.
func (c Cascade) Run(doc *goquery.Document) []string {
	var values []string

	for _, sel := range c.Selectors {
		matches := doc.Find(sel.Query)
		if c.Policy == FirstMatch {
			matches = matches.First()
		}

		matches.Each(func(_ int, s *goquery.Selection) {
			if c.Policy == FirstMatch && len(values) > 0 {
				return
			}

			target := s
			if sel.Child != "" {
				target = s.Find(sel.Child).First()
				if target.Length() == 0 {
					return
				}
			}

			if value, ok := c.accept(sel.Value(target)); ok {
				values = append(values, value)
			}
		})

		if c.Policy == FirstMatch && len(values) > 0 {
			return values
		}
	}

	return values
}

func (c Cascade) accept(raw string) (string, bool) {
	value := clean(raw)
	if c.Accept != nil {
		return c.Accept(value)
	}
	return value, value != ""
}

// ContentOrText prefers the content attribute (meta tags) over element text.
func ContentOrText(s *goquery.Selection) string {
	if content, ok := s.Attr("content"); ok {
		return content
	}
	return s.Text()
}

// DatetimeOrContentOrText prefers the machine-readable datetime attribute.
func DatetimeOrContentOrText(s *goquery.Selection) string {
	if datetime, ok := s.Attr("datetime"); ok && strings.TrimSpace(datetime) != "" {
		return datetime
	}
	return ContentOrText(s)
}

// Content reads only the content attribute.
func Content(s *goquery.Selection) string {
	return s.AttrOr("content", "")
}

// Src reads the src attribute of an image.
func Src(s *goquery.Selection) string {
	return s.AttrOr("src", "")
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizeMediaURL(src string) (string, bool) {
	if src == "" {
		return "", false
	}

	lower := strings.ToLower(src)
	for _, pattern := range rejectedMediaPatterns {
		if strings.Contains(lower, pattern) {
			return "", false
		}
	}

	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}

	// Only absolute http(s) URLs; relative paths could collide with mirrored refs.
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return "", false
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return "", false
	}

	return src, true
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
