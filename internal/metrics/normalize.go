package metrics

import (
	"strings"

	"golang.org/x/text/cases"
)

var queryFolder = cases.Fold()

// NormalizeQuery canonicalizes a search query for entity matching: trimmed,
// inner whitespace collapsed, Unicode case-folded. Tracked queries are often
// Cyrillic, so plain ToLower is not enough.
func NormalizeQuery(q string) string {
	return queryFolder.String(strings.Join(strings.Fields(q), " "))
}
