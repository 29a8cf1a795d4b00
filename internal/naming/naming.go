// Package naming provides the case conversions used to derive identifiers (type
// names, field names, environment variable names) from request data.
//
// Every function splits its input into words first, so "X-Api-Key", "x_api_key" and
// "xApiKey" all produce the same result.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Words splits s into its component words.
//
// Any character that isn't a letter or digit separates words, as does a lower to
// upper case transition ("userId" -> "user", "Id") and the end of an acronym
// ("HTTPServer" -> "HTTP", "Server").
func Words(s string) []string {
	var (
		words   []string
		current []rune
	)

	flush := func() {
		if len(current) != 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}

		if len(current) != 0 && unicode.IsUpper(r) {
			prev := current[len(current)-1]
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextIsLower) {
				flush()
			}
		}

		current = append(current, r)
	}

	flush()

	return words
}

// Pascal converts s to PascalCase e.g. "user_profile" -> "UserProfile".
func Pascal(s string) string {
	title := cases.Title(language.English)

	var b strings.Builder
	for _, word := range Words(s) {
		b.WriteString(title.String(word))
	}

	return b.String()
}

// Camel converts s to camelCase e.g. "User-Profile" -> "userProfile".
func Camel(s string) string {
	words := Words(s)
	if len(words) == 0 {
		return ""
	}

	lower := cases.Lower(language.English)

	return lower.String(words[0]) + Pascal(strings.Join(words[1:], " "))
}

// Snake converts s to snake_case e.g. "UserProfile" -> "user_profile".
func Snake(s string) string {
	return join(s, "_", cases.Lower(language.English))
}

// ScreamingSnake converts s to SCREAMING_SNAKE_CASE e.g. "X-Api-Key" -> "X_API_KEY".
func ScreamingSnake(s string) string {
	return join(s, "_", cases.Upper(language.English))
}

// Kebab converts s to kebab-case e.g. "UserProfile" -> "user-profile".
func Kebab(s string) string {
	return join(s, "-", cases.Lower(language.English))
}

// Identifier makes name safe to use as an identifier in most languages by
// prefixing it with fallback if it is empty or starts with a digit.
func Identifier(name, fallback string) string {
	if name == "" {
		return fallback
	}

	if first := []rune(name)[0]; unicode.IsDigit(first) {
		return fallback + name
	}

	return name
}

// Singular returns the singular form of an English plural noun, good enough for
// naming the element type of a list e.g. "categories" -> "category". Words that
// don't look plural are returned unchanged.
func Singular(word string) string {
	lower := strings.ToLower(word)

	switch {
	case strings.HasSuffix(lower, "ies") && len(word) > 3:
		return word[:len(word)-3] + matchCase(word[len(word)-3:], "y")
	case strings.HasSuffix(lower, "sses"),
		strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "shes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"), strings.HasSuffix(lower, "is"):
		return word
	case strings.HasSuffix(lower, "s") && len(word) > 1:
		return word[:len(word)-1]
	default:
		return word
	}
}

// matchCase returns replacement upper cased if like is entirely upper case.
func matchCase(like, replacement string) string {
	if like == strings.ToUpper(like) {
		return strings.ToUpper(replacement)
	}

	return replacement
}

// join splits s into words, transforms each with caser and joins them with sep.
func join(s, sep string, caser cases.Caser) string {
	words := Words(s)
	for i, word := range words {
		words[i] = caser.String(word)
	}

	return strings.Join(words, sep)
}
