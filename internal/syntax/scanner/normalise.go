package scanner

import (
	"strings"
)

// replacer maps the typographic characters editors, chat apps and documentation
// sites substitute into pasted commands back to their plain ASCII equivalents.
var replacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u201c", `"`, // left double quotation mark
	"\u201d", `"`, // right double quotation mark
	"\u201e", `"`, // double low-9 quotation mark
	"\u201f", `"`, // double high-reversed-9 quotation mark
	"\u2033", `"`, // double prime
	"\u2018", "'", // left single quotation mark
	"\u2019", "'", // right single quotation mark
	"\u201a", "'", // single low-9 quotation mark
	"\u201b", "'", // single high-reversed-9 quotation mark
	"\u2032", "'", // prime
	"\u00a0", " ", // no-break space
	"\u2002", " ", // en space
	"\u2003", " ", // em space
	"\u2009", " ", // thin space
	"\u202f", " ", // narrow no-break space
	"\u200b", "", // zero width space
	"\ufeff", "", // byte order mark
)

// Normalise cleans up a curl command that has been copied from a browser, a chat
// message or a markdown document so that it can be scanned as plain POSIX shell.
//
// It:
//
//   - Converts CRLF and lone CR line endings to LF
//   - Replaces smart quotes with their ASCII equivalents and odd spaces with a plain space
//   - Drops markdown code fence lines and surrounding backticks
//   - Drops leading shell comment lines, including a shebang
//   - Converts Windows cmd (^) and PowerShell (`) line continuations to backslashes
//   - Strips a leading "$ " shell prompt and a trailing ';'
//   - Joins lines ending in an unescaped backslash with the following line
//
// Normalise is idempotent.
func Normalise(src string) string {
	// Each pass can expose something for the next to clean up e.g. a prompt
	// inside backticks, so keep going until nothing changes
	for {
		out := normalise(src)
		if out == src {
			return out
		}

		src = out
	}
}

// normalise performs a single cleanup pass over src.
func normalise(src string) string {
	src = replacer.Replace(src)

	lines := strings.Split(src, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}

		if len(kept) == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "#")) {
			continue
		}

		line = strings.TrimRight(line, " \t")

		switch {
		case strings.HasSuffix(line, " ^"), line == "^":
			line = strings.TrimSuffix(line, "^") + `\`
		case strings.HasSuffix(line, " `"), line == "`":
			line = strings.TrimSuffix(line, "`") + `\`
		}

		kept = append(kept, line)
	}

	src = joinContinuations(strings.Join(kept, "\n"))
	src = strings.TrimSpace(src)

	if len(src) >= 2 && strings.HasPrefix(src, "`") && strings.HasSuffix(src, "`") {
		src = strings.TrimSpace(src[1 : len(src)-1])
	}

	src = strings.TrimSpace(strings.TrimPrefix(src, "$ "))

	if strings.HasSuffix(src, ";") && !strings.HasSuffix(src, `\;`) {
		src = strings.TrimSpace(strings.TrimSuffix(src, ";"))
	}

	return src
}

// joinContinuations removes every backslash-newline pair where the backslash is not
// itself escaped, joining the two lines.
func joinContinuations(src string) string {
	if !strings.Contains(src, "\\\n") {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))

	for i := 0; i < len(src); i++ {
		if src[i] == '\\' && i+1 < len(src) && src[i+1] == '\n' && !escaped(src, i) {
			i++ // Skip the newline too
			continue
		}

		b.WriteByte(src[i])
	}

	return b.String()
}

// escaped reports whether the character at index i in src is preceded by an
// odd number of backslashes.
func escaped(src string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && src[j] == '\\'; j-- {
		n++
	}

	return n%2 == 1
}
