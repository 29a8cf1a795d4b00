// Package scanner implements a lexical scanner for curl command lines, reading the raw source
// text and producing a stream of tokens.
//
// The scanner is a state-function based scanner similar to that described by
// Rob Pike in his talk [Lexical Scanning in Go], based on the implementation of [text/template].
//
// Unlike text/template, the state machine is driven synchronously from [Scanner.Scan]: each call
// runs states until at least one token is ready, there are no goroutines or channels involved. A
// curl command is a single line of shell so the overhead of a concurrent scanner buys nothing.
//
// The scanner implements the subset of POSIX shell word splitting and quote removal needed to turn
// a pasted command into the argument vector curl would have received: single quotes, double quotes
// with their limited escapes, ANSI-C $'...' strings and backslash escapes in unquoted text.
//
// [Lexical Scanning in Go]: https://go.dev/talks/2011/lex.slide#1
package scanner

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.followtheprocess.codes/uncurl/internal/syntax"
	"go.followtheprocess.codes/uncurl/internal/syntax/token"
)

// eof signifies we have reached the end of the input.
const eof = rune(-1)

// urlPattern matches bare words curl would treat as a URL even without a scheme.
var urlPattern = regexp.MustCompile(
	`^(localhost|[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)+|\[[0-9A-Fa-f:]+\])(:\d+)?([/?#]\S*)?$`,
)

// stateFn represents the state of the scanner as a function that does the work
// associated with the current state, then returns the next state.
type stateFn func(*Scanner) stateFn

// Scanner is the curl command line scanner.
type Scanner struct {
	state       stateFn             // The next state to run, nil once the scanner is finished
	name        string              // Name of the input
	diagnostics []syntax.Diagnostic // Diagnostics gathered during scanning
	src         []byte              // Raw source text
	tokens      []token.Token       // Tokens scanned but not yet handed out by Scan
	word        strings.Builder     // The shell-processed text of the word currently being scanned
	start       int                 // The start position of the current token
	pos         int                 // Current scanner position in src (bytes, 0 indexed)
}

// New returns a new [Scanner].
//
// The src should already have been through [Normalise] if it came from
// a copy and paste.
func New(name string, src []byte) *Scanner {
	return &Scanner{
		state: scanStart,
		name:  name,
		src:   src,
	}
}

// Scan scans the input and returns the next token.
//
// Once the input is exhausted, every subsequent call returns an EOF token.
func (s *Scanner) Scan() token.Token {
	for len(s.tokens) == 0 {
		if s.state == nil {
			return token.Token{Kind: token.EOF, Start: len(s.src), End: len(s.src)}
		}

		s.state = s.state(s)
	}

	tok := s.tokens[0]
	s.tokens = s.tokens[1:]

	return tok
}

// Diagnostics returns the list of diagnostics gathered during scanning.
func (s *Scanner) Diagnostics() []syntax.Diagnostic {
	// Create a copy so caller can't mutate the original diagnostics slice
	diagCopy := make([]syntax.Diagnostic, 0, len(s.diagnostics))
	diagCopy = append(diagCopy, s.diagnostics...)

	return diagCopy
}

// atEOF reports whether the scanner is at the end of the input.
func (s *Scanner) atEOF() bool {
	return s.pos >= len(s.src)
}

// char returns the next utf8 rune in the input or [eof], along with it's width.
//
// Invalid utf8 is passed through as [utf8.RuneError] with a width of 1 so the scanner
// always makes progress.
func (s *Scanner) char() (rune, int) {
	if s.atEOF() {
		return eof, 0
	}

	return utf8.DecodeRune(s.src[s.pos:])
}

// next returns the next utf8 rune in the input or [eof], and advances
// the scanner over that rune such that successive calls to next iterate
// through src one rune at a time.
func (s *Scanner) next() rune {
	char, width := s.char()
	s.pos += width

	return char
}

// peek returns the next utf8 rune in the input or [eof], but does not
// advance the scanner. Successive calls to peek return the same char
// over and over again.
func (s *Scanner) peek() rune {
	char, _ := s.char()
	return char
}

// discard brings the start position up to current, effectively discarding
// any text the scanner has "collected" up to this point.
func (s *Scanner) discard() {
	s.start = s.pos
	s.word.Reset()
}

// restHasPrefix reports whether the remainder of the input begins with the
// provided run of characters.
func (s *Scanner) restHasPrefix(prefix string) bool {
	if s.atEOF() {
		return false
	}

	return bytes.HasPrefix(s.src[s.pos:], []byte(prefix))
}

// skip ignores any characters for which the predicate returns true, stopping at the
// first one that returns false such that after it returns, [Scanner.next] returns the
// first 'false' char.
func (s *Scanner) skip(predicate func(r rune) bool) {
	for predicate(s.peek()) {
		s.next()
	}

	s.discard()
}

// emit queues a token of the given kind covering the byte range [start, end).
func (s *Scanner) emit(kind token.Kind, value string, start, end int) {
	s.tokens = append(s.tokens, token.Token{
		Kind:  kind,
		Value: value,
		Start: start,
		End:   end,
	})
}

// error records a diagnostic pointing at [start, end) and queues an error token,
// ending the scan.
func (s *Scanner) error(start, end int, msg string) stateFn {
	s.emit(token.Error, msg, start, end)

	s.diagnostics = append(s.diagnostics, syntax.Diagnostic{
		Position: syntax.PositionOf(s.name, s.src, start, end),
		Msg:      msg,
	})

	return nil
}

// errorf calls error with a formatted message.
func (s *Scanner) errorf(start, end int, format string, a ...any) stateFn {
	return s.error(start, end, fmt.Sprintf(format, a...))
}

// scanStart is the initial state of the scanner, and the state it returns
// to between every word.
//
// Whitespace (including newlines) only separates words.
func scanStart(s *Scanner) stateFn {
	s.skip(isSpace)

	if s.peek() == eof {
		s.emit(token.EOF, "", s.pos, s.pos)
		return nil
	}

	return scanWord
}

// scanWord scans a single shell word, a run of unquoted text and quoted strings
// ending at the first unquoted whitespace.
func scanWord(s *Scanner) stateFn {
	for {
		switch char := s.peek(); {
		case char == eof, isSpace(char):
			return scanEndWord
		case char == '\'':
			return scanSingleQuote
		case char == '"':
			return scanDoubleQuote
		case char == '$' && s.restHasPrefix("$'"):
			return scanANSIQuote
		case char == '\\':
			s.next()

			switch escaped := s.next(); escaped {
			case eof:
				// A trailing backslash with nothing to escape is kept literally
				s.word.WriteRune('\\')
			case '\n':
				// Line continuation, the pair vanishes entirely
			default:
				s.word.WriteRune(escaped)
			}
		default:
			s.word.WriteRune(s.next())
		}
	}
}

// scanSingleQuote scans a single quoted string, inside of which every
// character is literal.
func scanSingleQuote(s *Scanner) stateFn {
	open := s.pos
	s.next() // '

	for {
		switch char := s.next(); char {
		case eof:
			return s.error(open, open+1, "unterminated single quote")
		case '\'':
			return scanWord
		default:
			s.word.WriteRune(char)
		}
	}
}

// scanDoubleQuote scans a double quoted string, inside of which a backslash
// only escapes '"', '\', '$', '`' and newline.
func scanDoubleQuote(s *Scanner) stateFn {
	open := s.pos
	s.next() // "

	for {
		switch char := s.next(); char {
		case eof:
			return s.error(open, open+1, "unterminated double quote")
		case '"':
			return scanWord
		case '\\':
			switch escaped := s.peek(); escaped {
			case '"', '\\', '$', '`':
				s.word.WriteRune(s.next())
			case '\n':
				s.next()
			default:
				s.word.WriteRune('\\')
			}
		default:
			s.word.WriteRune(char)
		}
	}
}

// scanANSIQuote scans a bash ANSI-C quoted string e.g. $'line one\nline two', as
// produced by the "Copy as cURL" action in Chromium based browsers.
func scanANSIQuote(s *Scanner) stateFn {
	open := s.pos
	s.next() // $
	s.next() // '

	for {
		switch char := s.next(); char {
		case eof:
			return s.error(open, open+2, "unterminated ANSI-C quote")
		case '\'':
			return scanWord
		case '\\':
			s.ansiEscape()
		default:
			s.word.WriteRune(char)
		}
	}
}

// ansiEscape handles the character(s) after a backslash in an ANSI-C quoted string.
func (s *Scanner) ansiEscape() {
	switch escaped := s.next(); escaped {
	case 'n':
		s.word.WriteByte('\n')
	case 't':
		s.word.WriteByte('\t')
	case 'r':
		s.word.WriteByte('\r')
	case 'a':
		s.word.WriteByte('\a')
	case 'b':
		s.word.WriteByte('\b')
	case 'e', 'E':
		s.word.WriteByte(0x1b)
	case 'f':
		s.word.WriteByte('\f')
	case 'v':
		s.word.WriteByte('\v')
	case 'x':
		s.hexEscape(2, "x")
	case 'u':
		s.hexEscape(4, "u")
	case 'U':
		s.hexEscape(8, "U")
	case eof:
		s.word.WriteRune('\\')
	default:
		// \\, \', \" and anything unknown are the character itself
		s.word.WriteRune(escaped)
	}
}

// hexEscape reads up to digits hex digits and writes the rune they encode, if there
// are no valid digits the escape is written back literally.
func (s *Scanner) hexEscape(digits int, prefix string) {
	start := s.pos
	for i := 0; i < digits && isHex(s.peek()); i++ {
		s.next()
	}

	hex := string(s.src[start:s.pos])
	if hex == "" {
		s.word.WriteString(`\` + prefix)
		return
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		s.word.WriteString(`\` + prefix + hex)
		return
	}

	if prefix == "x" {
		s.word.WriteByte(byte(n))
		return
	}

	s.word.WriteRune(rune(n))
}

// scanEndWord classifies the word just scanned and emits it.
//
// Anything starting with a '-' is a [token.Flag], even "--data=hello". Whether it's
// really a flag or the argument of the one before depends on its position, which
// only the parser knows.
func scanEndWord(s *Scanner) stateFn {
	word := s.word.String()

	switch {
	case strings.HasPrefix(word, "-") && len(word) > 1:
		s.emit(token.Flag, word, s.start, s.pos)
	case IsURL(word):
		s.emit(token.URL, word, s.start, s.pos)
	default:
		s.emit(token.Bare, word, s.start, s.pos)
	}

	s.discard()

	return scanStart
}

// IsURL reports whether word looks like something curl would treat as a URL, either
// because it has a scheme or because it looks like a host name.
func IsURL(word string) bool {
	if strings.Contains(word, "://") {
		return true
	}

	return urlPattern.MatchString(word)
}

// isSpace reports whether r is a shell word separator.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

// isHex reports whether r is a valid hexadecimal digit.
func isHex(r rune) bool {
	return ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}
