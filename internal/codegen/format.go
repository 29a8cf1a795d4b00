package codegen

import (
	"strings"

	"golang.org/x/tools/imports"
)

// Format normalises the layout of source code in the given language.
//
// Go code is run through goimports, which also prunes unused imports, so it is
// always indented with tabs whatever the options say. Everything
// else is re-indented in the unit options ask for: if the code is already indented
// consistently with that unit its indentation is left exactly as is, otherwise the
// indentation step in use is detected and every line is re-indented at the
// equivalent depth. Trailing whitespace is removed, runs of blank lines collapse to
// one and the result ends in exactly one newline.
//
// Format is idempotent, formatting its own output with the same options returns
// it unchanged.
func Format(code, language string, options Options) string {
	if isGo(language) {
		formatted, err := imports.Process("main.go", []byte(code), &imports.Options{
			Comments:  true,
			TabIndent: true,
			TabWidth:  8,
		})
		if err == nil {
			return string(formatted)
		}
		// Not valid Go, do the best we can with the generic rules below
	}

	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	if !consistent(lines, options) {
		lines = reindent(lines, options)
	}

	var out strings.Builder

	blank := true // Suppresses leading blank lines
	for _, line := range lines {
		if line == "" {
			if !blank {
				out.WriteByte('\n')
			}

			blank = true

			continue
		}

		blank = false

		out.WriteString(line)
		out.WriteByte('\n')
	}

	formatted := strings.TrimRight(out.String(), "\n")
	if formatted == "" {
		return ""
	}

	return formatted + "\n"
}

// isGo reports whether language names Go.
func isGo(language string) bool {
	language = strings.ToLower(strings.TrimSpace(language))
	if canonical, ok := aliases[language]; ok {
		language = canonical
	}

	return language == "go"
}

// leading returns the leading whitespace of line.
func leading(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// consistent reports whether every line is indented in whole units of the
// indentation options ask for.
func consistent(lines []string, options Options) bool {
	for _, line := range lines {
		indent := leading(line)
		if indent == "" {
			continue
		}

		if options.IndentType == IndentTabs {
			if strings.Trim(indent, "\t") != "" {
				return false
			}

			continue
		}

		if strings.Trim(indent, " ") != "" || len(indent)%max(options.IndentSize, 1) != 0 {
			return false
		}
	}

	return true
}

// reindent detects the indentation step used by lines and re-indents each one at
// the same depth in the unit options ask for.
//
// A tab is always one level, runs of spaces are measured in the greatest common
// divisor of every space indent in the input.
func reindent(lines []string, options Options) []string {
	step := 0

	for _, line := range lines {
		spaces := strings.Count(leading(line), " ")
		if spaces != 0 {
			step = gcd(step, spaces)
		}
	}

	unit := indentUnit(options)
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		indent := leading(line)
		depth := strings.Count(indent, "\t")

		if spaces := strings.Count(indent, " "); spaces != 0 && step != 0 {
			depth += (spaces + step/2) / step
		}

		out = append(out, strings.Repeat(unit, depth)+line[len(indent):])
	}

	return out
}

// gcd returns the greatest common divisor of a and b.
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}
