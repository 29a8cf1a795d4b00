package codegen

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
)

// quoting describes how a language writes a string literal.
type quoting struct {
	escapes map[rune]string     // Characters that need escaping and their escaped form
	control func(r rune) string // Escaped form of any other control character
	delim   string              // Opening and closing quote
}

// quote returns s as a string literal.
func (q quoting) quote(s string) string {
	var b strings.Builder

	b.WriteString(q.delim)

	for _, r := range s {
		if escaped, ok := q.escapes[r]; ok {
			b.WriteString(escaped)
			continue
		}

		if (r < 0x20 || r == 0x7f) && q.control != nil {
			b.WriteString(q.control(r))
			continue
		}

		b.WriteRune(r)
	}

	b.WriteString(q.delim)

	return b.String()
}

// with returns a copy of q escaping the given extra characters.
func (q quoting) with(extra map[rune]string) quoting {
	escapes := make(map[rune]string, len(q.escapes)+len(extra))
	for r, escaped := range q.escapes {
		escapes[r] = escaped
	}

	for r, escaped := range extra {
		escapes[r] = escaped
	}

	q.escapes = escapes

	return q
}

// unicode4 escapes r as \uXXXX.
func unicode4(r rune) string {
	return fmt.Sprintf(`\u%04x`, r)
}

// unicodeBraced escapes r as \u{X}.
func unicodeBraced(r rune) string {
	return fmt.Sprintf(`\u{%x}`, r)
}

// Quoting styles, named for the languages that use them.
//
//nolint:gochecknoglobals // Effectively constants
var (
	// Double quoted strings with C style escapes: JavaScript, TypeScript, Java,
	// C#, Python and Go all accept these.
	cQuote = quoting{
		delim: `"`,
		escapes: map[rune]string{
			'"':  `\"`,
			'\\': `\\`,
			'\n': `\n`,
			'\r': `\r`,
			'\t': `\t`,
		},
		control: unicode4,
	}

	kotlinQuote = cQuote.with(map[rune]string{'$': `\$`})
	rubyQuote   = cQuote.with(map[rune]string{'#': `\#`})

	rustQuote = quoting{
		delim:   cQuote.delim,
		escapes: cQuote.escapes,
		control: unicodeBraced,
	}

	swiftQuote = rustQuote

	phpQuote = rustQuote.with(map[rune]string{'$': `\$`})

	dartQuote = quoting{
		delim: `'`,
		escapes: map[rune]string{
			'\'': `\'`,
			'\\': `\\`,
			'$':  `\$`,
			'\n': `\n`,
			'\r': `\r`,
			'\t': `\t`,
		},
		control: unicode4,
	}

	// POSIX shell single quotes, nothing is special but the quote itself.
	shellQuote = quoting{
		delim:   `'`,
		escapes: map[rune]string{'\'': `'\''`},
	}

	// Shell double quotes, used when a value has to interpolate a variable.
	shellDoubleQuote = quoting{
		delim: `"`,
		escapes: map[rune]string{
			'"':  `\"`,
			'\\': `\\`,
			'$':  `\$`,
			'`':  "\\`",
		},
	}
)

// shellWord returns s as a shell word, quoting it only if it needs it.
func shellWord(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@,+%", r))
	}) == -1 {
		return s
	}

	return shellQuote.quote(s)
}

// concat renders a value that may reference environment variables as a string
// expression: each literal part quoted with q, each reference rendered by env and
// the pieces joined with op.
func concat(value envvars.Value, q quoting, env func(name string) string, op string) string {
	if len(value) == 0 {
		return q.quote("")
	}

	parts := make([]string, 0, len(value))

	for _, part := range value {
		if part.IsEnv() {
			parts = append(parts, env(part.Env))
			continue
		}

		if part.Text != "" {
			parts = append(parts, q.quote(part.Text))
		}
	}

	if len(parts) == 0 {
		return q.quote("")
	}

	return strings.Join(parts, op)
}

// dynamic describes how a dynamically typed language writes JSON-like data
// as a literal: maps, lists, and scalars.
type dynamic struct {
	quoting        quoting // How to write strings
	objectOpen     string  // e.g. "{"
	objectClose    string  // e.g. "}"
	arrayOpen      string  // e.g. "["
	arrayClose     string  // e.g. "]"
	separator      string  // Between a key and its value e.g. ": "
	null           string  // e.g. "None"
	trueLiteral    string  // e.g. "True"
	falseLiteral   string  // e.g. "False"
	trailingCommas bool    // Whether the last member is followed by a comma
}

// Literal styles.
//
//nolint:gochecknoglobals // Effectively constants
var (
	jsonLiteral = dynamic{
		quoting:      cQuote,
		objectOpen:   "{",
		objectClose:  "}",
		arrayOpen:    "[",
		arrayClose:   "]",
		separator:    ": ",
		null:         "null",
		trueLiteral:  "true",
		falseLiteral: "false",
	}

	jsLiteral = dynamic{
		quoting:        cQuote,
		objectOpen:     "{",
		objectClose:    "}",
		arrayOpen:      "[",
		arrayClose:     "]",
		separator:      ": ",
		null:           "null",
		trueLiteral:    "true",
		falseLiteral:   "false",
		trailingCommas: true,
	}

	pythonLiteral = dynamic{
		quoting:        cQuote,
		objectOpen:     "{",
		objectClose:    "}",
		arrayOpen:      "[",
		arrayClose:     "]",
		separator:      ": ",
		null:           "None",
		trueLiteral:    "True",
		falseLiteral:   "False",
		trailingCommas: true,
	}

	rubyLiteral = dynamic{
		quoting:        rubyQuote,
		objectOpen:     "{",
		objectClose:    "}",
		arrayOpen:      "[",
		arrayClose:     "]",
		separator:      " => ",
		null:           "nil",
		trueLiteral:    "true",
		falseLiteral:   "false",
		trailingCommas: true,
	}

	phpLiteral = dynamic{
		quoting:        phpQuote,
		objectOpen:     "[",
		objectClose:    "]",
		arrayOpen:      "[",
		arrayClose:     "]",
		separator:      " => ",
		null:           "null",
		trueLiteral:    "true",
		falseLiteral:   "false",
		trailingCommas: true,
	}

	dartLiteral = dynamic{
		quoting:        dartQuote,
		objectOpen:     "{",
		objectClose:    "}",
		arrayOpen:      "[",
		arrayClose:     "]",
		separator:      ": ",
		null:           "null",
		trueLiteral:    "true",
		falseLiteral:   "false",
		trailingCommas: true,
	}
)

// block renders node as a literal, one member per line.
//
// The first line has no prefix, the caller prepends whatever assigns or passes
// the value and suffix is appended to the last line.
func (d dynamic) block(node *shape.Node, prefix, suffix string) Block {
	w := newWriter("")
	d.write(w, node, prefix, suffix)

	return w.Block()
}

// write writes node to w, the first line starting with prefix and the last
// ending with suffix.
func (d dynamic) write(w *writer, node *shape.Node, prefix, suffix string) {
	switch node.Kind {
	case shape.Object:
		if len(node.Fields) == 0 {
			w.line("%s%s%s%s", prefix, d.objectOpen, d.objectClose, suffix)
			return
		}

		w.open("%s%s", prefix, d.objectOpen)

		for i, field := range node.Fields {
			d.write(w, field.Value, d.quoting.quote(field.Key)+d.separator, d.comma(i, len(node.Fields)))
		}

		w.close("%s%s", d.objectClose, suffix)
	case shape.Array:
		if len(node.Items) == 0 {
			w.line("%s%s%s%s", prefix, d.arrayOpen, d.arrayClose, suffix)
			return
		}

		w.open("%s%s", prefix, d.arrayOpen)

		for i, item := range node.Items {
			d.write(w, item, "", d.comma(i, len(node.Items)))
		}

		w.close("%s%s", d.arrayClose, suffix)
	default:
		w.line("%s%s%s", prefix, d.scalar(node), suffix)
	}
}

// scalar renders a scalar node.
func (d dynamic) scalar(node *shape.Node) string {
	switch node.Kind {
	case shape.String:
		return d.quoting.quote(node.Value)
	case shape.Null:
		return d.null
	case shape.Bool:
		if node.Value == "true" {
			return d.trueLiteral
		}

		return d.falseLiteral
	default:
		return node.Value
	}
}

// comma returns the separator to follow member i of n.
func (d dynamic) comma(i, n int) string {
	if i < n-1 || d.trailingCommas {
		return ","
	}

	return ""
}
