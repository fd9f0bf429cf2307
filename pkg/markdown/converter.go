package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// ToPlainText renders markdown (model descriptions, formatted listings)
// as plain text for callers that asked for a textual response
func ToPlainText(markdown string) string {
	if markdown == "" {
		return ""
	}

	// Convert markdown to HTML using blackfriday, then strip the markup
	html := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	return stripHTML(html)
}

// stripHTML reduces rendered HTML to readable plain text
func stripHTML(html string) string {
	// Paragraphs and breaks become newlines
	html = regexp.MustCompile(`<p>(.*?)</p>`).ReplaceAllString(html, "$1\n")
	html = strings.ReplaceAll(html, "<br>", "\n")
	html = strings.ReplaceAll(html, "<br/>", "\n")

	// Keep list structure as bullets
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")

	// Code blocks keep their content verbatim
	html = regexp.MustCompile(`<pre><code(?: class="[^"]*")?>`).ReplaceAllString(html, "")
	html = strings.ReplaceAll(html, "</code></pre>", "\n")

	// Drop every remaining tag
	html = regexp.MustCompile(`</?[a-zA-Z][^>]*>`).ReplaceAllString(html, "")

	// Undo the entity escaping blackfriday applies
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
	)
	html = replacer.Replace(html)

	// Clean up extra newlines
	html = regexp.MustCompile(`\n{3,}`).ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
