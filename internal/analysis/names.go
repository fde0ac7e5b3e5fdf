package analysis

import (
	"fmt"
	"strings"
	"unicode"
)

// pascal converts a schema property name to UpperCamelCase. Words break on
// non-alphanumeric separators, lower-to-upper transitions, and letter-digit
// transitions; acronym runs are normalized ("jwtTokensByRole" becomes
// "JwtTokensByRole", "FOO_BAR" becomes "FooBar").
func pascal(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsDigit(prev) != unicode.IsDigit(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				// end of an acronym run: "HTTPRoute" -> HTTP | Route
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// variantName produces an identifier for an enum variant, preserving the
// literal through the graph while keeping names usable. Degenerate literals
// get stable placeholder names.
func variantName(literal string, ordinal int) string {
	switch literal {
	case "":
		return "KopiumEmpty"
	case "-":
		return "KopiumDash"
	case "_":
		return "KopiumUnderscore"
	}
	name := pascal(literal)
	if name == "" || unicode.IsDigit([]rune(name)[0]) {
		if name != "" {
			return "N" + name
		}
		return fmt.Sprintf("KopiumVariant%d", ordinal)
	}
	return name
}
