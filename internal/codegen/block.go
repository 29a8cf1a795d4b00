package codegen

import (
	"fmt"
	"strings"
)

// Line is a single line of generated code.
//
// Emitters never write indentation themselves, a line only records its logical
// depth and the rendering step turns that into spaces or tabs.
type Line struct {
	// Text is the code on the line, with no leading indentation
	Text string

	// Depth is the nesting level of the line
	Depth int

	// Comment marks an explanatory comment, dropped when comments are turned off
	Comment bool
}

// Block is a sequence of lines forming a logical unit of generated code e.g.
// the statements that build the request.
type Block []Line

// Indent returns a copy of the block nested n levels deeper.
func (b Block) Indent(n int) Block {
	indented := make(Block, 0, len(b))
	for _, line := range b {
		line.Depth += n
		indented = append(indented, line)
	}

	return indented
}

// IsEmpty reports whether the block has no code in it, comments and blank
// lines don't count.
func (b Block) IsEmpty() bool {
	for _, line := range b {
		if !line.Comment && strings.TrimSpace(line.Text) != "" {
			return false
		}
	}

	return true
}

// join concatenates blocks separating each non-empty one with a blank line.
func join(blocks ...Block) Block {
	var out Block

	for _, block := range blocks {
		if len(block) == 0 {
			continue
		}

		if len(out) != 0 {
			out = append(out, Line{})
		}

		out = append(out, block...)
	}

	return out
}

// writer builds a [Block] line by line, tracking the current depth.
type writer struct {
	comment string // Line comment prefix for the language e.g. "//"
	block   Block
	depth   int
}

// newWriter returns a [writer] for a language whose line comments start with prefix.
func newWriter(prefix string) *writer {
	return &writer{comment: prefix}
}

// line writes a line at the current depth, formatting it if args are given.
func (w *writer) line(text string, args ...any) {
	if len(args) != 0 {
		text = fmt.Sprintf(text, args...)
	}

	w.block = append(w.block, Line{Text: text, Depth: w.depth})
}

// open writes a line and increases the depth for those that follow.
func (w *writer) open(text string, args ...any) {
	w.line(text, args...)
	w.depth++
}

// close decreases the depth and writes a line.
func (w *writer) close(text string, args ...any) {
	w.depth = max(w.depth-1, 0)
	w.line(text, args...)
}

// cont writes a continuation of the previous line, two levels deeper.
func (w *writer) cont(text string, args ...any) {
	w.depth += 2
	w.line(text, args...)
	w.depth -= 2
}

// note writes an explanatory comment.
func (w *writer) note(text string, args ...any) {
	if len(args) != 0 {
		text = fmt.Sprintf(text, args...)
	}

	for part := range strings.SplitSeq(text, "\n") {
		w.block = append(w.block, Line{Text: w.comment + " " + part, Depth: w.depth, Comment: true})
	}
}

// blank writes an empty line.
func (w *writer) blank() {
	w.block = append(w.block, Line{})
}

// add writes every line of b nested at the current depth.
func (w *writer) add(b Block) {
	w.block = append(w.block, b.Indent(w.depth)...)
}

// Block returns everything written so far.
func (w *writer) Block() Block {
	return w.block
}

// render turns a block into source text.
//
// Each line is indented by its depth in the unit given by options, comments are
// dropped if options say so, trailing whitespace is removed, runs of blank lines
// collapse to one and the result ends in exactly one newline.
func render(b Block, options Options) string {
	unit := indentUnit(options)

	var out strings.Builder

	blank := true // Suppresses leading blank lines
	for _, line := range b {
		if line.Comment && !options.IncludeComments {
			continue
		}

		text := strings.TrimRight(line.Text, " \t")
		if text == "" {
			if !blank {
				out.WriteByte('\n')
			}

			blank = true

			continue
		}

		blank = false

		out.WriteString(strings.Repeat(unit, line.Depth))
		out.WriteString(text)
		out.WriteByte('\n')
	}

	return strings.TrimRight(out.String(), "\n") + "\n"
}

// indentUnit returns the string for a single level of indentation.
func indentUnit(options Options) string {
	if options.IndentType == IndentTabs {
		return "\t"
	}

	return strings.Repeat(" ", max(options.IndentSize, 1))
}
