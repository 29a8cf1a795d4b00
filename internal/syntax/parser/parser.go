// Package parser implements a curl command line parser.
//
// The parser pulls tokens from the scanner and looks each flag up in a single table
// mapping every long and short alias to a handler, the handler's fold function then
// applies the flag to a half-built [ast.Command]. This keeps the grammar in one place
// and makes supporting a new flag a one line change.
//
// The parser is deliberately forgiving: unknown flags, duplicate URLs and flags that
// cannot be reproduced in code are reported as diagnostics but parsing continues. Only
// input that is genuinely unusable (empty, unterminated quotes, a flag missing its
// argument or too large) results in an error.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"go.followtheprocess.codes/uncurl/internal/errs"
	"go.followtheprocess.codes/uncurl/internal/syntax"
	"go.followtheprocess.codes/uncurl/internal/syntax/ast"
	"go.followtheprocess.codes/uncurl/internal/syntax/scanner"
	"go.followtheprocess.codes/uncurl/internal/syntax/token"
)

// MaxInputSize is the largest curl command (in bytes) the parser will accept.
const MaxInputSize = 1 << 20

// Parser is the curl command parser.
type Parser struct {
	diagnostics []syntax.Diagnostic // Diagnostics gathered during parsing
	scanner     *scanner.Scanner    // Scanner to produce tokens
	name        string              // Name of the input being parsed
	src         []byte              // Normalised source text
	current     token.Token         // Current token under inspection
	next        token.Token         // Next token in the stream
	size        int                 // Size of the raw input in bytes
	positional  bool                // Whether a "--" has been seen, after which everything is positional
}

// New initialises and returns a new [Parser] that parses src.
//
// The source is normalised with [scanner.Normalise] before scanning so every position
// the parser reports is relative to the normalised text, see [Parser.Source].
func New(name string, src []byte) *Parser {
	p := &Parser{
		name: name,
		size: len(src),
	}

	if p.size > MaxInputSize {
		// Don't bother normalising or scanning something we're going to reject
		p.scanner = scanner.New(name, nil)
	} else {
		p.src = []byte(scanner.Normalise(string(src)))
		p.scanner = scanner.New(name, p.src)
	}

	// Read 2 tokens so current and next are set
	p.advance()
	p.advance()

	return p
}

// Source returns the normalised source text the parser is working on.
func (p *Parser) Source() []byte {
	return p.src
}

// Parse parses the command to completion returning an [ast.Command].
//
// The error, if non-nil, is always an [*errs.ParseError].
func (p *Parser) Parse() (ast.Command, error) {
	if p == nil {
		return ast.Command{}, errors.New("Parse called on nil parser")
	}

	cmd := ast.Command{Name: p.name}

	if p.size > MaxInputSize {
		return cmd, &errs.ParseError{
			Kind:   errs.SizeLimitExceeded,
			Offset: -1,
			Msg:    fmt.Sprintf("input is %d bytes, the maximum is %d", p.size, MaxInputSize),
		}
	}

	if len(p.src) == 0 {
		return cmd, &errs.ParseError{
			Kind:   errs.EmptyInput,
			Offset: -1,
			Msg:    "no curl command given",
		}
	}

	// The command itself is just noise
	if p.current.Is(token.Bare) && isCurl(p.current.Value) {
		p.advance()
	}

	for !p.current.Is(token.EOF) {
		var err error

		switch p.current.Kind {
		case token.Error:
			err = p.scanError()
		case token.Flag:
			if p.positional {
				cmd.URLs = append(cmd.URLs, ast.Arg{Value: p.current})
				break
			}

			err = p.parseFlag(&cmd)
		case token.URL, token.Bare, token.Value:
			cmd.URLs = append(cmd.URLs, ast.Arg{Value: p.current})
		default:
			p.warnf(p.current.Start, p.current.End, "unexpected token %s", p.current.Kind)
		}

		if err != nil {
			return cmd, err
		}

		p.advance()
	}

	p.bindURL(&cmd)

	return cmd, nil
}

// Diagnostics returns any [syntax.Diagnostic] gathered during parsing.
func (p *Parser) Diagnostics() []syntax.Diagnostic {
	combined := slices.Concat(p.scanner.Diagnostics(), p.diagnostics)

	slices.SortStableFunc(combined, func(a, b syntax.Diagnostic) int {
		return syntax.ComparePosition(a.Position, b.Position)
	})

	return combined
}

// advance advances the parser by a single token.
func (p *Parser) advance() {
	p.current = p.next
	p.next = p.scanner.Scan()
}

// position returns the [syntax.Position] of the byte range [start, end).
func (p *Parser) position(start, end int) syntax.Position {
	return syntax.PositionOf(p.name, p.src, start, end)
}

// warnf records a formatted warning diagnostic covering [start, end).
func (p *Parser) warnf(start, end int, format string, a ...any) {
	p.diagnostics = append(p.diagnostics, syntax.Diagnostic{
		Msg:      fmt.Sprintf(format, a...),
		Position: p.position(start, end),
	})
}

// scanError converts the current error token into a [errs.ParseError].
func (p *Parser) scanError() error {
	return &errs.ParseError{
		Kind:     errs.UnterminatedQuote,
		Offset:   p.current.Start,
		Position: p.position(p.current.Start, p.current.End).String(),
		Msg:      p.current.Value,
	}
}

// missingValue returns a [errs.ParseError] for a flag given without its argument.
func (p *Parser) missingValue(flag string, h handler) error {
	return &errs.ParseError{
		Kind:     errs.MissingFlagValue,
		Offset:   p.current.Start,
		Position: p.position(p.current.Start, p.current.End).String(),
		Flag:     flag,
		Msg:      fmt.Sprintf("%s requires a %s value but none was given", flag, h.arg),
	}
}

// parseFlag parses the flag under p.current, along with its argument if
// it takes one.
func (p *Parser) parseFlag(cmd *ast.Command) error {
	flag := p.current

	if flag.Value == "--" {
		p.positional = true
		return nil
	}

	if h, ok := flags[flag.Value]; ok {
		return p.applyFlag(cmd, flag, h)
	}

	if strings.HasPrefix(flag.Value, "--") {
		if name, value, found := strings.Cut(flag.Value, "="); found {
			p.parseAttached(cmd, flag, name, value)
			return nil
		}

		p.unknownFlag(flag)

		return nil
	}

	return p.parseShortFlags(cmd, flag)
}

// parseAttached parses a long flag with its argument attached e.g. "--data=hello",
// name and value being the parts either side of the first '='.
func (p *Parser) parseAttached(cmd *ast.Command, flag token.Token, name, value string) {
	// Best effort at splitting the source range, quoting can make the
	// '=' land somewhere else in the raw text
	split := flag.End
	if eq := bytes.IndexByte(p.src[flag.Start:flag.End], '='); eq != -1 {
		split = flag.Start + eq
	}

	single := token.Token{Kind: token.Flag, Value: name, Start: flag.Start, End: split}
	attached := token.Token{Kind: token.Value, Value: value, Start: min(split+1, flag.End), End: flag.End}

	h, ok := flags[name]
	if !ok {
		p.warnUnknown(single)
		return
	}

	if h.note != "" {
		p.warnf(single.Start, single.End, "%s is ignored, %s", name, h.note)
	}

	if !h.takesValue() {
		p.warnf(attached.Start, attached.End, "%s does not take a value, ignoring %q", name, value)
		h.fold(cmd, ast.Arg{Flag: single})

		return
	}

	h.fold(cmd, ast.Arg{Flag: single, Value: attached})
}

// applyFlag folds a single known flag into cmd, consuming the next token as its
// argument if it takes one.
func (p *Parser) applyFlag(cmd *ast.Command, flag token.Token, h handler) error {
	if h.note != "" {
		p.warnf(flag.Start, flag.End, "%s is ignored, %s", flag.Value, h.note)
	}

	if !h.takesValue() {
		h.fold(cmd, ast.Arg{Flag: flag})

		return nil
	}

	switch p.next.Kind {
	case token.EOF:
		return p.missingValue(flag.Value, h)
	case token.Error:
		p.advance()
		return p.scanError()
	}

	p.advance()
	h.fold(cmd, ast.Arg{Flag: flag, Value: p.current})

	return nil
}

// parseShortFlags parses a cluster of short flags e.g. "-sSL", or a short flag
// with its argument attached e.g. "-XPOST".
//
// Each character is looked up in turn, the first one that takes an argument
// consumes the rest of the cluster (or the next token if the cluster ends there).
func (p *Parser) parseShortFlags(cmd *ast.Command, flag token.Token) error {
	cluster := strings.TrimPrefix(flag.Value, "-")

	for i, char := range cluster {
		name := "-" + string(char)
		offset := flag.Start + 1 + i

		h, ok := flags[name]
		if !ok {
			p.unknownFlag(token.Token{Kind: token.Flag, Value: name, Start: offset, End: offset + 1})
			continue
		}

		single := token.Token{Kind: token.Flag, Value: name, Start: offset, End: offset + 1}

		_, width := utf8.DecodeRuneInString(cluster[i:])
		rest := cluster[i+width:]
		if !h.takesValue() || rest == "" {
			// Either a boolean or the last in the cluster, in which case it
			// takes the next token as its argument like any other flag
			if err := p.applyFlag(cmd, single, h); err != nil {
				return err
			}

			if h.takesValue() {
				return nil
			}

			continue
		}

		if h.note != "" {
			p.warnf(single.Start, single.End, "%s is ignored, %s", name, h.note)
		}

		attached := token.Token{
			Kind:  token.Value,
			Value: rest,
			Start: offset + 1,
			End:   flag.End,
		}

		h.fold(cmd, ast.Arg{Flag: single, Value: attached})

		return nil
	}

	return nil
}

// unknownFlag records a warning for a flag the parser doesn't recognise.
//
// If the next token is a bare word (and not something that looks like a URL), it is
// assumed to be the unknown long flag's argument and skipped too.
func (p *Parser) unknownFlag(flag token.Token) {
	p.warnUnknown(flag)

	if strings.HasPrefix(flag.Value, "--") && p.next.Is(token.Bare) {
		p.advance()
	}
}

// warnUnknown records the warning for an unknown flag, suggesting the closest
// known one if there is one.
func (p *Parser) warnUnknown(flag token.Token) {
	msg := fmt.Sprintf("unknown flag %s", flag.Value)
	if suggestion := suggest(flag.Value); suggestion != "" {
		msg += fmt.Sprintf(", did you mean %s?", suggestion)
	}

	p.warnf(flag.Start, flag.End, "%s", msg)
}

// bindURL chooses the URL for the command from the candidates, preferring the first
// that looks like a URL, and warns about any that were dropped.
func (p *Parser) bindURL(cmd *ast.Command) {
	if len(cmd.URLs) == 0 {
		p.diagnostics = append(p.diagnostics, syntax.Diagnostic{Msg: "no URL found in curl command"})
		return
	}

	chosen := 0

	for i, candidate := range cmd.URLs {
		if candidate.Flag.Kind == token.Flag || candidate.Value.Is(token.URL) {
			chosen = i
			break
		}
	}

	url := cmd.URLs[chosen]
	cmd.URL = &url

	for i, candidate := range cmd.URLs {
		if i == chosen {
			continue
		}

		p.warnf(candidate.Start(), candidate.End(), "ignoring extra argument %q, only one URL is supported", candidate.Text())
	}
}

// isCurl reports whether word is an invocation of curl itself.
func isCurl(word string) bool {
	base := path.Base(strings.ReplaceAll(word, `\`, "/"))
	return base == "curl" || base == "curl.exe"
}
