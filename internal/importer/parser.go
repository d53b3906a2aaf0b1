package importer

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/casetrace/casetrace/internal/staging"
)

// ParseResult is what a parser extracted from one page.
type ParseResult struct {
	// Title summarizes the page for the source record.
	Title string
	// Text is the cleaned page text stored as the source raw_text.
	Text string
	// SourceType classifies the publisher (official, news, ...).
	SourceType string
	// Proposals are the structured records staged for review.
	Proposals staging.Proposals
}

// SiteParser extracts structured case data from one registry's pages.
// Implementations are matched by CanParse, first match wins, and the
// generic parser is the fallback.
type SiteParser interface {
	// Name identifies the parser in logs and source notes.
	Name() string
	// CanParse reports whether this parser handles the given URL.
	CanParse(u *url.URL) bool
	// Parse extracts case data from the page document.
	Parse(doc *goquery.Document) (ParseResult, error)
}

// Registry holds the parser chain.
type Registry struct {
	parsers []SiteParser
	generic SiteParser
}

// NewRegistry returns the default parser chain.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []SiteParser{
			&namusParser{},
			&fbiParser{},
			&doeNetworkParser{},
		},
		generic: &genericParser{},
	}
}

// For returns the parser responsible for a URL.
func (r *Registry) For(rawURL string) SiteParser {
	u, err := url.Parse(rawURL)
	if err != nil {
		return r.generic
	}
	for _, p := range r.parsers {
		if p.CanParse(u) {
			return p
		}
	}
	return r.generic
}

// ParseHTML runs the matched parser over raw HTML.
func (r *Registry) ParseHTML(rawURL, html string) (ParseResult, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ParseResult{}, "", err
	}
	p := r.For(rawURL)
	res, err := p.Parse(doc)
	return res, p.Name(), err
}

func hostMatches(u *url.URL, domain string) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// cleanText collapses whitespace runs in extracted page text.
var spaceRun = regexp.MustCompile(`[ \t]+`)
var blankRun = regexp.MustCompile(`\n{3,}`)

func cleanText(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRun.ReplaceAllString(s, "\n\n"))
}

// dateLayouts are the textual date forms seen on registry pages.
var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"2006-01-02",
	"2 January 2006",
}

// parseLooseDate normalizes a page date to ISO-8601, reporting failure
// instead of guessing.
func parseLooseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
