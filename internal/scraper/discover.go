package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// locator finds one candidate link in a page. With a selector the named
// attribute of every match is tested against pattern; without one the
// pattern runs over the raw HTML and its first group is the link.
type locator struct {
	selector string
	attr     string
	pattern  *regexp.Regexp
}

// downloadLocators are tried in order; the first hit wins
var downloadLocators = []locator{
	{selector: "a[href]", attr: "href", pattern: regexp.MustCompile(`(?i)oi[_-]?spurts[^"]*\.xlsx?$`)},
	{selector: "a[href]", attr: "href", pattern: regexp.MustCompile(`(?i)download.*oi`)},
	{pattern: regexp.MustCompile(`(?i)"downloadUrl"\s*:\s*"([^"]+)"`)},
	{selector: "[data-url]", attr: "data-url", pattern: regexp.MustCompile(`(?i)oi`)},
	{selector: "form[action]", attr: "action", pattern: regexp.MustCompile(`(?i)download`)},
}

// apiLocators are consulted only when no download link was found
var apiLocators = []locator{
	{pattern: regexp.MustCompile(`(?i)"apiUrl"\s*:\s*"([^"]*oi[^"]*)"`)},
	{pattern: regexp.MustCompile(`(?i)["'](/?api/[^"'\s]*oi[^"'\s]*)["']`)},
	{selector: "[data-api]", attr: "data-api", pattern: regexp.MustCompile(`.+`)},
}

// ProbeEndpoints are well-known export endpoints tried when the page
// exposes no link at all. A probe succeeds when it answers with a
// spreadsheet content type.
var ProbeEndpoints = []string{
	"/api/equity-stockIndices?csv=true",
	"/api/option-chain-indices?symbol=NIFTY",
	"/content/indices/ind_niftyoptions.csv",
	"/api/reports?archives=[{%22name%22:%22F&O%20-%20OI%20Spurts%22,%22type%22:%22archives%22,%22category%22:%22derivatives%22,%22section%22:%22equity%22}]",
}

// FindDownloadURL searches a page for the export link. Root-relative
// links resolve against baseURL, other relative links against pageURL.
func FindDownloadURL(html, pageURL, baseURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	for _, group := range [][]locator{downloadLocators, apiLocators} {
		for _, loc := range group {
			if link, ok := loc.find(doc, html); ok {
				return resolveLink(link, pageURL, baseURL), true
			}
		}
	}
	return "", false
}

func (l locator) find(doc *goquery.Document, html string) (string, bool) {
	if l.selector == "" {
		m := l.pattern.FindStringSubmatch(html)
		if len(m) < 2 || m[1] == "" {
			return "", false
		}
		return unescapeJSONSlashes(m[1]), true
	}

	var found string
	doc.Find(l.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(l.attr)
		v = strings.TrimSpace(v)
		if ok && v != "" && l.pattern.MatchString(v) {
			found = v
			return false
		}
		return true
	})
	return found, found != ""
}

func resolveLink(link, pageURL, baseURL string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}

	anchor := pageURL
	if strings.HasPrefix(link, "/") {
		anchor = baseURL
	}

	base, err := url.Parse(anchor)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// unescapeJSONSlashes undoes the \/ escaping common in embedded JSON
func unescapeJSONSlashes(s string) string {
	return strings.ReplaceAll(s, `\/`, "/")
}

// IsSpreadsheetContentType reports whether a response advertises a
// binary spreadsheet or generic download
func IsSpreadsheetContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "application/vnd") ||
		strings.HasPrefix(ct, "application/octet") ||
		strings.HasPrefix(ct, "application/excel")
}

// looksLikeHTML checks the start of a body for an error page
func looksLikeHTML(body []byte) bool {
	n := len(body)
	if n > 1000 {
		n = 1000
	}
	preview := strings.ToLower(string(body[:n]))
	return strings.Contains(preview, "<html") || strings.Contains(preview, "<!doctype html")
}
