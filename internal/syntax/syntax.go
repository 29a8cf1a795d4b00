// Package syntax handles turning the raw text of a curl command into meaningful
// data structures and implements the tokeniser, parser and resolver.
package syntax

import (
	"bytes"
	"cmp"
	"fmt"
)

// Position is an arbitrary source position including name, line
// and column information. It can also express a range of source via StartCol
// and EndCol, this is useful for error reporting.
//
// Positions without names are considered invalid, in the case of stdin
// the string "stdin" may be used.
type Position struct {
	Name     string `json:"name"`     // Name of the input e.g. filename or "stdin"
	Offset   int    `json:"offset"`   // Byte offset of the position from the start of the input
	Line     int    `json:"line"`     // Line number (1 indexed)
	StartCol int    `json:"startCol"` // Start column (1 indexed)
	EndCol   int    `json:"endCol"`   // End column (1 indexed), EndCol == StartCol when pointing to a single character
}

// PositionOf calculates the [Position] of the byte range [start, end) within src.
//
// Offsets outside of src are clamped to its bounds. Ranges spanning more than one
// line are truncated to the end of the line they start on.
func PositionOf(name string, src []byte, start, end int) Position {
	start = max(0, min(start, len(src)))
	end = max(start, min(end, len(src)))

	line := 1 + bytes.Count(src[:start], []byte("\n"))

	lineStart := bytes.LastIndexByte(src[:start], '\n') + 1
	if nl := bytes.IndexByte(src[start:end], '\n'); nl != -1 {
		end = start + nl
	}

	startCol := start - lineStart + 1
	endCol := end - lineStart

	// Pointing at a single character (or nothing at all), no range needed
	if endCol <= startCol {
		endCol = startCol
	}

	return Position{
		Name:     name,
		Offset:   start,
		Line:     line,
		StartCol: startCol,
		EndCol:   endCol,
	}
}

// IsValid reports whether the [Position] describes a valid source position.
//
// The rules are:
//
//   - At least Name, Line and StartCol must be set (and non zero)
//   - EndCol cannot be 0, it's only allowed values are StartCol or any number greater than StartCol
func (p Position) IsValid() bool {
	if p.Name == "" || p.Line < 1 || p.StartCol < 1 || p.EndCol < 1 ||
		(p.EndCol >= 1 && p.EndCol < p.StartCol) {
		return false
	}

	return true
}

// String returns a string representation of a [Position].
//
// It is formatted such that most text editors/terminals will be able to support clicking on it
// and navigating to the position.
//
// Depending on which fields are set, the string returned will be different:
//
//   - "name:line:start-end": valid position pointing to a range of text on the line
//   - "name:line:start": valid position pointing to a single character on the line (EndCol == StartCol)
//
// At least Name, Line and StartCol must be present for a valid position, and Line and StarCol must be > 0.
// If not, an error string will be returned.
func (p Position) String() string {
	if !p.IsValid() {
		return fmt.Sprintf(
			"BadPosition: {Name: %q, Line: %d, StartCol: %d, EndCol: %d}",
			p.Name,
			p.Line,
			p.StartCol,
			p.EndCol,
		)
	}

	if p.StartCol == p.EndCol {
		// No range, just a single position
		return fmt.Sprintf("%s:%d:%d", p.Name, p.Line, p.StartCol)
	}

	return fmt.Sprintf("%s:%d:%d-%d", p.Name, p.Line, p.StartCol, p.EndCol)
}

// ComparePosition is like [cmp.Compare] for a [syntax.Position].
//
// If x and y are equal ComparePosition returns 0.
//
// If x and y refer to the same input, it returns [cmp.Compare] of
// the two offsets.
//
// If the positions refer to different inputs, they are compared alphabetically.
func ComparePosition(x, y Position) int {
	if x == y {
		return 0
	}

	if x.Name == y.Name {
		return cmp.Compare(x.Offset, y.Offset)
	}

	return cmp.Compare(x.Name, y.Name)
}

// Diagnostic is a syntax level diagnostic.
//
// Diagnostics are non-fatal, the pipeline continues past them and they are
// surfaced to the user as warnings.
type Diagnostic struct {
	Msg      string   `json:"msg"`      // A descriptive message explaining the problem
	Position Position `json:"position"` // The source position the diagnostic points to.
}

// String prints a [Diagnostic].
func (d Diagnostic) String() string {
	if !d.Position.IsValid() {
		return d.Msg + "\n"
	}

	return d.Position.String() + ": " + d.Msg + "\n"
}
