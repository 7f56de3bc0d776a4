package validation

import "strings"

var markupEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize trims s and escapes the characters that could be read as markup.
// It is not idempotent: an already escaped string gets escaped again, so
// callers sanitize once, where trusted storage begins.
func Sanitize(s string) string {
	return markupEscaper.Replace(strings.TrimSpace(s))
}
