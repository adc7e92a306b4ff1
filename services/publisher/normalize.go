package publisher

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex        = regexp.MustCompile(`<[^>]+>`)
	headingNoSpaceRegex = regexp.MustCompile(`(?m)^(#+)(\S)`)
	headingOverrunRegex = regexp.MustCompile(`(?m)^#{7,}`)
	headingClosingRegex = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.*?)[ \t]*#+[ \t]*$`)
	headingUnsafeRegex  = regexp.MustCompile(`(?m)(^#{1,6}[ \t]+)(.+?)["&<>/\\:*?|]+`)
	whitespaceLineRegex = regexp.MustCompile(`(?m)^[ \t]+$`)
	blankRunRegex       = regexp.MustCompile(`\n{3,}`)
	spaceRunRegex       = regexp.MustCompile(` {2,}`)
)

// Normalize cleans a document's markup for the target theme: residual
// HTML goes away (image tags carrying placeholder tokens survive),
// full-width punctuation becomes half-width, heading syntax is
// regularized, and whitespace is collapsed. Pure and idempotent; must
// run after asset relocation so the tag strip cannot eat image markup
// the relocator still needs.
func Normalize(text string) string {
	content := text

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	// half-width conversion runs first: it can mint new angle-bracket
	// tags that the strip below must also see, or the transform would
	// not be idempotent
	content = fullwidthToHalfwidth(content)

	content = htmlTagRegex.ReplaceAllStringFunc(content, func(tag string) string {
		if strings.Contains(tag, placeholderPrefix) {
			return tag
		}
		return ""
	})

	content = headingNoSpaceRegex.ReplaceAllString(content, "$1 $2")
	content = headingOverrunRegex.ReplaceAllString(content, "######")
	content = headingClosingRegex.ReplaceAllString(content, "$1 $2")
	for {
		next := headingUnsafeRegex.ReplaceAllString(content, "$1$2")
		if next == content {
			break
		}
		content = next
	}

	content = whitespaceLineRegex.ReplaceAllString(content, "")
	content = blankRunRegex.ReplaceAllString(content, "\n\n")
	content = spaceRunRegex.ReplaceAllString(content, " ")

	return content
}

// fullwidthToHalfwidth maps the ideographic space U+3000 to an
// ordinary space and the full-width forms U+FF01..U+FF5E to their
// ASCII equivalents (a fixed offset of 0xFEE0). Every other rune
// passes through untouched.
func fullwidthToHalfwidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == 0x3000:
			b.WriteRune(' ')
		case r >= 0xFF01 && r <= 0xFF5E:
			b.WriteRune(r - 0xFEE0)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
