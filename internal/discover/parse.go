package discover

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

var locPattern = regexp.MustCompile(`(?is)<loc>(.*?)</loc>`)

// parseLocations extracts every location entry from an index document.
// index reports whether the document is a nested index (sitemapindex)
// rather than a leaf set (urlset); kindKnown reports whether the document
// declared either container, so callers can tell "definitely a leaf set"
// apart from "no idea".
//
// The structured parse runs first; when the document is malformed or wrapped
// in challenge HTML the permissive regex pass takes over. Upstream documents
// are frequently sloppy, so neither path is allowed to fail hard.
func parseLocations(body []byte) (locs []string, index, kindKnown bool) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err == nil {
		for _, node := range xmlquery.Find(doc, "//*[local-name()='loc']") {
			if loc := strings.TrimSpace(node.InnerText()); loc != "" {
				locs = append(locs, loc)
			}
		}
		if len(locs) > 0 {
			if xmlquery.FindOne(doc, "//*[local-name()='sitemapindex']") != nil {
				return locs, true, true
			}
			if xmlquery.FindOne(doc, "//*[local-name()='urlset']") != nil {
				return locs, false, true
			}
			return locs, false, false
		}
	}

	for _, m := range locPattern.FindAllSubmatch(body, -1) {
		if loc := strings.TrimSpace(string(m[1])); loc != "" {
			locs = append(locs, loc)
		}
	}
	index = bytes.Contains(bytes.ToLower(body), []byte("<sitemapindex"))
	return locs, index, false
}

// isNestedIndex guesses whether a single location points at another index
// document. Only consulted when parseLocations could not establish the
// document kind, so a .xml leaf inside a well-formed urlset is never
// mistaken for an index.
func isNestedIndex(loc string) bool {
	trimmed := loc
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.HasSuffix(strings.ToLower(trimmed), ".xml")
}
