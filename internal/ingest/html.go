package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vigil-intel/vigil/internal/util"
)

// CleanHTML strips markup from an HTML fragment and returns plain text with
// collapsed whitespace. Script and style bodies are dropped. Input that does
// not parse as HTML is returned with whitespace collapsed.
func CleanHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return util.CollapseWhitespace(fragment)
	}
	doc.Find("script, style, noscript").Remove()
	return util.CollapseWhitespace(doc.Text())
}
