package api

import "strings"

// htmlEscaper replaces the five HTML-reserved characters in a single pass,
// so already-escaped sequences are not escaped twice within one call.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Sanitize HTML-escapes a value before storage. Stored data-record values
// never contain raw < > & " '.
func Sanitize(s string) string {
	return htmlEscaper.Replace(s)
}
