package usecase

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricepilot/linkverify/internal/domain"
)

// minTextLength is the threshold under which an extraction is flagged as a
// likely empty or placeholder page.
const minTextLength = 100

// ExtractText strips markup from fetched HTML and normalizes whitespace into
// clean text: script and style subtrees are discarded, each line is trimmed,
// double-space runs are split to catch layout whitespace, empty fragments are
// dropped, and the remainder is rejoined with single newlines.
//
// Empty or unparseable input returns domain.ErrEmptyDocument with no text.
// Text shorter than minTextLength is still returned, alongside
// domain.ErrThinContent — a soft warning, not a hard failure.
func ExtractText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", domain.ErrEmptyDocument
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEmptyDocument, err)
	}

	doc.Find("script, style").Remove()

	var chunks []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if chunk := strings.TrimSpace(phrase); chunk != "" {
				chunks = append(chunks, chunk)
			}
		}
	}
	text := strings.Join(chunks, "\n")

	if len(text) < minTextLength {
		return text, domain.ErrThinContent
	}
	return text, nil
}
