package assistant

import (
	"regexp"
	"strings"
)

// Perso-Arabic marks first, then their Latin counterparts. Kept in one
// class so mixed-script replies are treated uniformly.
const punctClass = "،؛؟\\.:!,;?"

var (
	whitespaceRunRe   = regexp.MustCompile(`\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([` + punctClass + `])`)
	missingSpaceAfter = regexp.MustCompile(`([` + punctClass + `])([^\s0-9` + punctClass + `])`)
)

// Normalize cleans up generated text before it reaches the user. The
// model sometimes emits stray spacing around Persian punctuation, so:
// runs of whitespace collapse to one space, whitespace before a
// punctuation mark is dropped, a single space is ensured after a mark
// unless the next rune is a digit or another mark, and the ends are
// trimmed. The pass is pure and idempotent.
func Normalize(text string) string {
	text = whitespaceRunRe.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = missingSpaceAfter.ReplaceAllString(text, "$1 $2")
	return strings.TrimSpace(text)
}
