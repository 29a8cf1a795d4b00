package syntax_test

import (
	"flag"
	"fmt"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/syntax"
)

var (
	_ = flag.Bool("update", false, "Update snapshots")
	_ = flag.Bool("clean", false, "Clean all snapshots and recreate")
)

func TestPositionString(t *testing.T) {
	tests := []struct {
		name string          // Name of the test case
		want string          // Expected return value
		pos  syntax.Position // Position under test
	}{
		{
			name: "empty",
			pos:  syntax.Position{},
			want: `BadPosition: {Name: "", Line: 0, StartCol: 0, EndCol: 0}`,
		},
		{
			name: "missing name",
			pos:  syntax.Position{Line: 12, StartCol: 2, EndCol: 6},
			want: `BadPosition: {Name: "", Line: 12, StartCol: 2, EndCol: 6}`,
		},
		{
			name: "zero line",
			pos:  syntax.Position{Name: "file.txt", Line: 0, StartCol: 12, EndCol: 19},
			want: `BadPosition: {Name: "file.txt", Line: 0, StartCol: 12, EndCol: 19}`,
		},
		{
			name: "zero start column",
			pos:  syntax.Position{Name: "file.txt", Line: 4, StartCol: 0, EndCol: 19},
			want: `BadPosition: {Name: "file.txt", Line: 4, StartCol: 0, EndCol: 19}`,
		},
		{
			name: "zero end column",
			pos:  syntax.Position{Name: "file.txt", Line: 4, StartCol: 1, EndCol: 0},
			want: `BadPosition: {Name: "file.txt", Line: 4, StartCol: 1, EndCol: 0}`,
		},
		{
			name: "end less than start",
			pos:  syntax.Position{Name: "stdin", Line: 1, StartCol: 6, EndCol: 4},
			want: `BadPosition: {Name: "stdin", Line: 1, StartCol: 6, EndCol: 4}`,
		},
		{
			name: "valid single column",
			pos:  syntax.Position{Name: "command.sh", Line: 1, StartCol: 6, EndCol: 6},
			want: "command.sh:1:6",
		},
		{
			name: "valid column range",
			pos:  syntax.Position{Name: "command.sh", Line: 17, StartCol: 20, EndCol: 26},
			want: "command.sh:17:20-26",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.Equal(t, tt.pos.String(), tt.want)
		})
	}
}

func TestPositionOf(t *testing.T) {
	tests := []struct {
		name       string          // Name of the test case
		src        string          // Source text
		want       syntax.Position // Expected position
		start, end int             // Byte range to locate
	}{
		{
			name:  "start of input",
			src:   "curl https://example.com",
			start: 0,
			end:   4,
			want:  syntax.Position{Name: "test", Offset: 0, Line: 1, StartCol: 1, EndCol: 4},
		},
		{
			name:  "single character",
			src:   "curl 'oops",
			start: 5,
			end:   6,
			want:  syntax.Position{Name: "test", Offset: 5, Line: 1, StartCol: 6, EndCol: 6},
		},
		{
			name:  "second line",
			src:   "curl\n  -H 'X: y'",
			start: 7,
			end:   9,
			want:  syntax.Position{Name: "test", Offset: 7, Line: 2, StartCol: 3, EndCol: 4},
		},
		{
			name:  "range spanning lines is truncated",
			src:   "curl -d 'a\nb'",
			start: 8,
			end:   13,
			want:  syntax.Position{Name: "test", Offset: 8, Line: 1, StartCol: 9, EndCol: 10},
		},
		{
			name:  "out of bounds is clamped",
			src:   "curl",
			start: 10,
			end:   20,
			want:  syntax.Position{Name: "test", Offset: 4, Line: 1, StartCol: 5, EndCol: 5},
		},
		{
			name:  "negative is clamped",
			src:   "curl",
			start: -3,
			end:   2,
			want:  syntax.Position{Name: "test", Offset: 0, Line: 1, StartCol: 1, EndCol: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := syntax.PositionOf("test", []byte(tt.src), tt.start, tt.end)
			test.Equal(t, got, tt.want)
			test.True(t, got.IsValid(), test.Context("PositionOf returned invalid position %#v", got))
		})
	}
}

func TestComparePosition(t *testing.T) {
	a := syntax.Position{Name: "a", Offset: 1, Line: 1, StartCol: 2, EndCol: 2}
	b := syntax.Position{Name: "a", Offset: 5, Line: 1, StartCol: 6, EndCol: 6}
	c := syntax.Position{Name: "b", Offset: 0, Line: 1, StartCol: 1, EndCol: 1}

	test.Equal(t, syntax.ComparePosition(a, a), 0)
	test.Equal(t, syntax.ComparePosition(a, b), -1)
	test.Equal(t, syntax.ComparePosition(b, a), 1)
	test.Equal(t, syntax.ComparePosition(b, c), -1)
}

func TestDiagnosticString(t *testing.T) {
	diag := syntax.Diagnostic{
		Msg:      "unknown flag --fake-flag",
		Position: syntax.Position{Name: "stdin", Offset: 5, Line: 1, StartCol: 6, EndCol: 16},
	}

	test.Equal(t, diag.String(), "stdin:1:6-16: unknown flag --fake-flag\n")

	// No position, just the message
	diag = syntax.Diagnostic{Msg: "no URL found in curl command"}
	test.Equal(t, diag.String(), "no URL found in curl command\n")
}

func FuzzPosition(f *testing.F) {
	f.Add("", 0, 0, 0)
	f.Add("name.txt", 1, 1, 2)
	f.Add("valid.curl", 12, 17, 19)
	f.Add("invalid.curl", 0, -9, 9999)

	f.Fuzz(func(t *testing.T, name string, line, startCol, endCol int) {
		pos := syntax.Position{
			Name:     name,
			Line:     line,
			StartCol: startCol,
			EndCol:   endCol,
		}

		got := pos.String()

		// Property: If IsValid returns false, the string must be this format
		if !pos.IsValid() {
			want := fmt.Sprintf(
				"BadPosition: {Name: %q, Line: %d, StartCol: %d, EndCol: %d}",
				name,
				line,
				startCol,
				endCol,
			)
			test.Equal(t, got, want)

			return
		}

		// Property: If IsValid returned true, Line must be >= 1
		test.True(
			t,
			pos.Line >= 1,
			test.Context("IsValid() = true but pos.Line (%d) was not >= 1", pos.Line),
		)

		// Property: If IsValid returned true, StartCol must be >= 1
		test.True(
			t,
			pos.StartCol >= 1,
			test.Context("IsValid() = true but pos.StartCol (%d) was not >= 1", pos.StartCol),
		)

		// Property: If IsValid returned true, EndCol must be >= 1
		test.True(
			t,
			pos.EndCol >= 1,
			test.Context("IsValid() = true but pos.EndCol (%d) was not >= 1", pos.EndCol),
		)

		// Property: If IsValid returned true, EndCol must also be >= StartCol
		test.True(
			t,
			pos.EndCol >= pos.StartCol,
			test.Context(
				"IsValid() = true but pos.EndCol (%d) was not >= pos.StartCol (%d)",
				pos.EndCol,
				pos.StartCol,
			),
		)

		// Property: If StartCol == EndCol, no range must appear in the string
		if startCol == endCol {
			want := fmt.Sprintf("%s:%d:%d", name, line, startCol)
			test.Equal(t, got, want)

			return
		}

		// Otherwise the position must be a valid position with a column range
		want := fmt.Sprintf("%s:%d:%d-%d", name, line, startCol, endCol)
		test.Equal(t, got, want)
	})
}
