package normalize

import (
	"strings"

	"github.com/credence-dev/credence/internal/model"
	"golang.org/x/net/html"
)

// Indicator lists for content-type classification. Order of evaluation is
// satire, then opinion, then breaking prefixes: satire carries the strongest
// downstream confidence adjustment, so its indicators always win.
var (
	satireIndicators = []string{
		"the onion",
		"babylon bee",
		"clickhole",
		"waterford whispers",
		"the beaverton",
		"satire",
		"satirical",
		"parody",
	}

	opinionIndicators = []string{
		"opinion",
		"op-ed",
		"editorial",
		"commentary",
		"analysis:",
		"viewpoint",
		"perspective:",
		"column:",
	}

	breakingPrefixes = []string{
		"breaking:",
		"breaking news",
		"just in:",
		"urgent:",
		"live updates",
		"developing story",
	}
)

// ClassifyContentType classifies content as NEWS, OPINION, SATIRE, or
// BREAKING from lexical indicators. Markup input is reduced to its visible
// text first. Default is NEWS.
func ClassifyContentType(markupOrText string) model.ContentType {
	text := markupOrText
	if looksLikeHTML(text) {
		text = VisibleText(text)
	}
	lower := strings.ToLower(NormalizeText(text))

	for _, kw := range satireIndicators {
		if strings.Contains(lower, kw) {
			return model.ContentTypeSatire
		}
	}

	for _, kw := range opinionIndicators {
		if strings.Contains(lower, kw) {
			return model.ContentTypeOpinion
		}
	}

	for _, prefix := range breakingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return model.ContentTypeBreaking
		}
	}

	return model.ContentTypeNews
}

// VisibleText extracts the visible text from HTML markup, skipping
// script/style/noscript/iframe subtrees. Input that fails to parse is
// returned unchanged (html.Parse is lenient, so this is rare).
func VisibleText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String())
}

func looksLikeHTML(s string) bool {
	t := strings.TrimSpace(s)
	return strings.Contains(t, "</") || strings.HasPrefix(t, "<!doctype") ||
		strings.HasPrefix(t, "<!DOCTYPE") || strings.HasPrefix(t, "<html")
}
