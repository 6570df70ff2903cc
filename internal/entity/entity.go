// Package entity converts between the storage format's character references
// and literal text.
//
// The storage format accepts the full HTML named-entity table (&nbsp;,
// &mdash;, &rsquo;, ...) which strict XML rejects, so decoding goes through
// the HTML5 table rather than the five XML entities.
package entity

import (
	"strings"

	"golang.org/x/net/html"
)

// Decode replaces named and numeric character references with the characters
// they stand for. Unknown references are left as they are.
func Decode(raw string) string {
	if strings.IndexByte(raw, '&') < 0 {
		return raw
	}
	return html.UnescapeString(raw)
}

var textReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\u00a0", "&nbsp;",
)

var attrReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\u00a0", "&nbsp;",
)

// Encode escapes the characters that cannot appear literally in storage-format
// text. Decode(Encode(s)) == s for every s.
func Encode(text string) string {
	return textReplacer.Replace(text)
}

// EncodeAttr escapes a value for use inside a double-quoted attribute.
func EncodeAttr(value string) string {
	return attrReplacer.Replace(value)
}
