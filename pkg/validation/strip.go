package validation

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags removes markup and comments from s, leaving text as written.
// Entities are not decoded.
func StripTags(s string) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tokenizer.Raw())
		}
	}
}

// StrippedByteLength returns the length in bytes of s once markup is
// removed. Multi-byte text reaches CommentMaxText in fewer characters.
func StrippedByteLength(s string) int {
	return len(StripTags(s))
}
