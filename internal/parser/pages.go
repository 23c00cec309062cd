package parser

import (
	"strings"

	"docextract/internal/domain"
)

// Page caps per call. Classification needs only the first pages.
const (
	MaxClassifyPages = 3
	MaxExtractPages  = 10
)

// LimitPages returns at most n pages from the front of pages.
func LimitPages(pages []domain.Page, n int) []domain.Page {
	if n > 0 && len(pages) > n {
		return pages[:n]
	}
	return pages
}

// IsImage reports whether contentType is an image type the providers accept inline.
func IsImage(contentType string) bool {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}
