package pipeline

import (
	"strings"

	"docextract/internal/domain"
)

// FormatOCRText renders tokens one per line as "<ref>\t<text>" so the extractor can
// cite them. Output stops at the last whole line within maxChars; maxChars <= 0 means
// no limit.
func FormatOCRText(pages []domain.PageTokens, maxChars int) string {
	var b strings.Builder
	for _, p := range pages {
		for i, t := range p.Tokens {
			line := domain.TokenRef{PageIndex: p.PageIndex, TokenIndex: i}.String() + "\t" + t.Text + "\n"
			if maxChars > 0 && b.Len()+len(line) > maxChars {
				return strings.TrimSuffix(b.String(), "\n")
			}
			b.WriteString(line)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
