package flatfinder

import "strings"

// MaxTitleLength is the number of runes of a title kept in a message.
const MaxTitleLength = 60

var markupReplacer = strings.NewReplacer("*", "", "_", "", "`", "", "[", "", "]", "")

// StripMarkup removes characters that Markdown treats as emphasis or link
// syntax, so scraped text cannot break the message layout.
func StripMarkup(s string) string {
	return markupReplacer.Replace(s)
}

// Shorten truncates s to n runes, replacing the tail with "...".
func Shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return strings.TrimRight(string(r[:n-3]), " ") + "..."
}

// FormatMessage composes the default notification for a listing:
// a bold title, a line with address, price and size, then the link.
func FormatMessage(l Listing) string {
	var b strings.Builder
	b.WriteString("*")
	b.WriteString(Shorten(StripMarkup(l.Title), MaxTitleLength))
	b.WriteString("*\n")
	b.WriteString(StripMarkup(l.Address))
	b.WriteString(" | ")
	b.WriteString(StripMarkup(l.Price))
	b.WriteString(" | ")
	b.WriteString(StripMarkup(l.Size))
	b.WriteString("\n")
	b.WriteString(l.Link)
	return b.String()
}
