// Package htmltext derives a plain-text alternative body from rendered
// HTML email content. The result is what lands in the text/plain MIME part
// for clients that do not render HTML.
package htmltext

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	initOnce     sync.Once

	// Block-level closers that imply a line break in the text rendering.
	blockBreaks = strings.NewReplacer(
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
		"</p>", "\n\n",
		"</div>", "\n",
		"</h1>", "\n\n",
		"</h2>", "\n\n",
		"</h3>", "\n\n",
		"</h4>", "\n\n",
		"</li>", "\n",
		"</tr>", "\n",
	)

	multiBlank = regexp.MustCompile(`\n{3,}`)
)

func policy() *bluemonday.Policy {
	initOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// Convert strips all markup from HTML and returns a readable plain-text
// rendering: block boundaries become newlines, entities are decoded, and
// runs of blank lines are collapsed.
func Convert(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}

	text := blockBreaks.Replace(htmlContent)
	text = policy().Sanitize(text)
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = multiBlank.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
