package scanner_test

import (
	"flag"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/txtar"
	"go.followtheprocess.codes/uncurl/internal/syntax/scanner"
	"go.followtheprocess.codes/uncurl/internal/syntax/token"
	"go.uber.org/goleak"
)

var update = flag.Bool("update", false, "Update snapshots and testdata")

func TestBasics(t *testing.T) {
	tests := []struct {
		name string        // Name of the test case
		src  string        // Source text to scan
		want []token.Token // Expected token stream
	}{
		{
			name: "empty",
			src:  "",
			want: []token.Token{
				{Kind: token.EOF, Start: 0, End: 0},
			},
		},
		{
			name: "whitespace only",
			src:  "  \t\n ",
			want: []token.Token{
				{Kind: token.EOF, Start: 5, End: 5},
			},
		},
		{
			name: "url only",
			src:  "curl https://a.b/c",
			want: []token.Token{
				{Kind: token.Bare, Value: "curl", Start: 0, End: 4},
				{Kind: token.URL, Value: "https://a.b/c", Start: 5, End: 18},
				{Kind: token.EOF, Start: 18, End: 18},
			},
		},
		{
			name: "short flag with value",
			src:  "-X POST",
			want: []token.Token{
				{Kind: token.Flag, Value: "-X", Start: 0, End: 2},
				{Kind: token.Bare, Value: "POST", Start: 3, End: 7},
				{Kind: token.EOF, Start: 7, End: 7},
			},
		},
		{
			name: "single quoted",
			src:  "-H 'Accept: */*'",
			want: []token.Token{
				{Kind: token.Flag, Value: "-H", Start: 0, End: 2},
				{Kind: token.Bare, Value: "Accept: */*", Start: 3, End: 16},
				{Kind: token.EOF, Start: 16, End: 16},
			},
		},
		{
			name: "single quotes are literal",
			src:  `'a\nb'`,
			want: []token.Token{
				{Kind: token.Bare, Value: `a\nb`, Start: 0, End: 6},
				{Kind: token.EOF, Start: 6, End: 6},
			},
		},
		{
			name: "double quoted escapes",
			src:  `"a \"b\" \$c"`,
			want: []token.Token{
				{Kind: token.Bare, Value: `a "b" $c`, Start: 0, End: 13},
				{Kind: token.EOF, Start: 13, End: 13},
			},
		},
		{
			name: "double quoted unknown escape kept",
			src:  `"a\nb"`,
			want: []token.Token{
				{Kind: token.Bare, Value: `a\nb`, Start: 0, End: 6},
				{Kind: token.EOF, Start: 6, End: 6},
			},
		},
		{
			name: "long flag with equals",
			src:  "--data=hello",
			want: []token.Token{
				{Kind: token.Flag, Value: "--data=hello", Start: 0, End: 12},
				{Kind: token.EOF, Start: 12, End: 12},
			},
		},
		{
			name: "long flag with empty attached value",
			src:  "--data=",
			want: []token.Token{
				{Kind: token.Flag, Value: "--data=", Start: 0, End: 7},
				{Kind: token.EOF, Start: 7, End: 7},
			},
		},
		{
			name: "quoted word that looks like a long flag",
			src:  `-d '--name=alice'`,
			want: []token.Token{
				{Kind: token.Flag, Value: "-d", Start: 0, End: 2},
				{Kind: token.Flag, Value: "--name=alice", Start: 3, End: 17},
				{Kind: token.EOF, Start: 17, End: 17},
			},
		},
		{
			name: "adjacent quotes join",
			src:  `'a'"b"c`,
			want: []token.Token{
				{Kind: token.Bare, Value: "abc", Start: 0, End: 7},
				{Kind: token.EOF, Start: 7, End: 7},
			},
		},
		{
			name: "ansi c quote",
			src:  `$'a\nb'`,
			want: []token.Token{
				{Kind: token.Bare, Value: "a\nb", Start: 0, End: 7},
				{Kind: token.EOF, Start: 7, End: 7},
			},
		},
		{
			name: "ansi c hex and unicode",
			src:  `$'\x41\u00e9'`,
			want: []token.Token{
				{Kind: token.Bare, Value: "A\u00e9", Start: 0, End: 13},
				{Kind: token.EOF, Start: 13, End: 13},
			},
		},
		{
			name: "escaped space",
			src:  `a\ b`,
			want: []token.Token{
				{Kind: token.Bare, Value: "a b", Start: 0, End: 4},
				{Kind: token.EOF, Start: 4, End: 4},
			},
		},
		{
			name: "backslash newline inside word",
			src:  "ab\\\ncd",
			want: []token.Token{
				{Kind: token.Bare, Value: "abcd", Start: 0, End: 6},
				{Kind: token.EOF, Start: 6, End: 6},
			},
		},
		{
			name: "host without scheme",
			src:  "example.com/api",
			want: []token.Token{
				{Kind: token.URL, Value: "example.com/api", Start: 0, End: 15},
				{Kind: token.EOF, Start: 15, End: 15},
			},
		},
		{
			name: "localhost with port",
			src:  "localhost:8080/health",
			want: []token.Token{
				{Kind: token.URL, Value: "localhost:8080/health", Start: 0, End: 21},
				{Kind: token.EOF, Start: 21, End: 21},
			},
		},
		{
			name: "empty quotes",
			src:  "-d ''",
			want: []token.Token{
				{Kind: token.Flag, Value: "-d", Start: 0, End: 2},
				{Kind: token.Bare, Value: "", Start: 3, End: 5},
				{Kind: token.EOF, Start: 5, End: 5},
			},
		},
		{
			name: "combined short flags",
			src:  "-sSL",
			want: []token.Token{
				{Kind: token.Flag, Value: "-sSL", Start: 0, End: 4},
				{Kind: token.EOF, Start: 4, End: 4},
			},
		},
		{
			name: "lone dash is bare",
			src:  "-",
			want: []token.Token{
				{Kind: token.Bare, Value: "-", Start: 0, End: 1},
				{Kind: token.EOF, Start: 1, End: 1},
			},
		},
		{
			name: "unterminated single quote",
			src:  "-d 'abc",
			want: []token.Token{
				{Kind: token.Flag, Value: "-d", Start: 0, End: 2},
				{Kind: token.Error, Value: "unterminated single quote", Start: 3, End: 4},
			},
		},
		{
			name: "unterminated double quote",
			src:  `"abc`,
			want: []token.Token{
				{Kind: token.Error, Value: "unterminated double quote", Start: 0, End: 1},
			},
		},
		{
			name: "unterminated ansi quote",
			src:  `$'abc`,
			want: []token.Token{
				{Kind: token.Error, Value: "unterminated ANSI-C quote", Start: 0, End: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			src := []byte(tt.src)
			scanner := scanner.New(tt.name, src)

			var tokens []token.Token

			for {
				tok := scanner.Scan()

				tokens = append(tokens, tok)
				if tok.Is(token.EOF, token.Error) {
					break
				}
			}

			test.EqualFunc(t, tokens, tt.want, slices.Equal, test.Context("token stream mismatch"))
		})
	}
}

func TestScanAfterEOF(t *testing.T) {
	s := scanner.New("eof", []byte("curl"))

	test.Equal(t, s.Scan().Kind, token.Bare)
	test.Equal(t, s.Scan().Kind, token.EOF)

	// Further calls must keep returning EOF rather than blocking or panicking
	for range 3 {
		tok := s.Scan()
		test.Equal(t, tok.Kind, token.EOF)
		test.Equal(t, tok.Start, 4)
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name string // Name of the test case
		src  string // Source text to scan
		want string // Expected diagnostics, one per line
	}{
		{
			name: "clean",
			src:  "curl https://example.com",
			want: "",
		},
		{
			name: "single",
			src:  "curl -H 'Accept",
			want: "single:1:9: unterminated single quote\n",
		},
		{
			name: "double on second line",
			src:  "curl\n-d \"abc",
			want: "double on second line:2:4: unterminated double quote\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scanner.New(tt.name, []byte(tt.src))
			for tok := s.Scan(); !tok.Is(token.EOF, token.Error); tok = s.Scan() {
				// Drain
			}

			var got strings.Builder
			for _, diag := range s.Diagnostics() {
				got.WriteString(diag.String())
			}

			test.Equal(t, got.String(), tt.want)
		})
	}
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name string // Name of the test case
		src  string // Raw pasted input
		want string // Expected normalised output
	}{
		{
			name: "already clean",
			src:  "curl https://a.b",
			want: "curl https://a.b",
		},
		{
			name: "crlf",
			src:  "curl a\r\nb",
			want: "curl a\nb",
		},
		{
			name: "smart quotes",
			src:  "curl -H \u201cAccept: x\u201d -d \u2018y\u2019",
			want: `curl -H "Accept: x" -d 'y'`,
		},
		{
			name: "non breaking space",
			src:  "curl\u00a0https://a.b",
			want: "curl https://a.b",
		},
		{
			name: "continuation",
			src:  "curl https://a.b \\\n  -X POST",
			want: "curl https://a.b   -X POST",
		},
		{
			name: "trailing whitespace after continuation",
			src:  "curl a \\  \n-v",
			want: "curl a -v",
		},
		{
			name: "escaped backslash is not a continuation",
			src:  "a\\\\\nb",
			want: "a\\\\\nb",
		},
		{
			name: "prompt",
			src:  "$ curl a.b",
			want: "curl a.b",
		},
		{
			name: "trailing semicolon",
			src:  "curl a.b;",
			want: "curl a.b",
		},
		{
			name: "markdown fence",
			src:  "```bash\ncurl a.b\n```",
			want: "curl a.b",
		},
		{
			name: "inline backticks",
			src:  "`curl a.b`",
			want: "curl a.b",
		},
		{
			name: "windows caret continuation",
			src:  "curl a.b ^\n -v",
			want: "curl a.b  -v",
		},
		{
			name: "powershell backtick continuation",
			src:  "curl a.b `\n -v",
			want: "curl a.b  -v",
		},
		{
			name: "surrounding whitespace",
			src:  "\n\n   curl a.b   \n",
			want: "curl a.b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanner.Normalise(tt.src)
			test.Equal(t, got, tt.want)

			// Normalising twice must be a no-op
			test.Equal(t, scanner.Normalise(got), got, test.Context("Normalise is not idempotent"))
		})
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		word string // Word under test
		want bool   // Expected return
	}{
		{word: "https://example.com", want: true},
		{word: "ftp://files.example.com/a.txt", want: true},
		{word: "example.com", want: true},
		{word: "api.example.com:8443/v1?x=1", want: true},
		{word: "localhost", want: true},
		{word: "localhost:3000", want: true},
		{word: "127.0.0.1:8080/health", want: true},
		{word: "[::1]:8080", want: true},
		{word: "POST", want: false},
		{word: "a=b&c=d", want: false},
		{word: "Content-Type: application/json", want: false},
		{word: `{"a":1}`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			test.Equal(t, scanner.IsURL(tt.word), tt.want)
		})
	}
}

func TestValid(t *testing.T) {
	// Force colour for diffs but only locally
	test.ColorEnabled(os.Getenv("CI") == "")

	pattern := filepath.Join("testdata", "valid", "*.txtar")
	files, err := filepath.Glob(pattern)
	test.Ok(t, err)

	for _, file := range files {
		name := filepath.Base(file)
		t.Run(name, func(t *testing.T) {
			archive, err := txtar.ParseFile(file)
			test.Ok(t, err)

			src, ok := archive.Read("src.txt")
			test.True(t, ok, test.Context("%s missing src.txt", file))

			want, ok := archive.Read("tokens.txt")
			test.True(t, ok, test.Context("%s missing tokens.txt", file))

			scanner := scanner.New(name, []byte(src))

			var tokens []token.Token

			for {
				tok := scanner.Scan()

				tokens = append(tokens, tok)
				if tok.Is(token.EOF, token.Error) {
					break
				}
			}

			var formattedTokens strings.Builder
			for _, tok := range tokens {
				formattedTokens.WriteString(tok.String())
				formattedTokens.WriteByte('\n')
			}

			got := formattedTokens.String()

			if *update {
				err := archive.Write("tokens.txt", got)
				test.Ok(t, err)

				err = txtar.DumpFile(file, archive)
				test.Ok(t, err)

				return
			}

			test.Diff(t, got, want)
		})
	}
}

func TestInvalid(t *testing.T) {
	// Force colour for diffs but only locally
	test.ColorEnabled(os.Getenv("CI") == "")

	pattern := filepath.Join("testdata", "invalid", "*.txtar")
	files, err := filepath.Glob(pattern)
	test.Ok(t, err)

	for _, file := range files {
		name := filepath.Base(file)
		t.Run(name, func(t *testing.T) {
			archive, err := txtar.ParseFile(file)
			test.Ok(t, err)

			src, ok := archive.Read("src.txt")
			test.True(t, ok, test.Context("%s missing src.txt", file))

			want, ok := archive.Read("tokens.txt")
			test.True(t, ok, test.Context("%s missing tokens.txt", file))

			errs, ok := archive.Read("errors.txt")
			test.True(t, ok, test.Context("%s missing errors.txt", file))

			scanner := scanner.New(name, []byte(src))

			var tokens []token.Token

			for {
				tok := scanner.Scan()

				tokens = append(tokens, tok)
				if tok.Is(token.EOF, token.Error) {
					break
				}
			}

			var formattedTokens strings.Builder
			for _, tok := range tokens {
				formattedTokens.WriteString(tok.String())
				formattedTokens.WriteByte('\n')
			}

			got := formattedTokens.String()

			var diagnostics strings.Builder
			for _, diag := range scanner.Diagnostics() {
				diagnostics.WriteString(diag.String())
			}

			gotErrs := diagnostics.String()

			if *update {
				err := archive.Write("tokens.txt", got)
				test.Ok(t, err)

				err = archive.Write("errors.txt", gotErrs)
				test.Ok(t, err)

				err = txtar.DumpFile(file, archive)
				test.Ok(t, err)

				return
			}

			test.Diff(t, got, want)
			test.Diff(t, gotErrs, errs)
		})
	}
}

func FuzzScanner(f *testing.F) {
	// Get all the curl source from testdata for the corpus
	pattern := filepath.Join("testdata", "valid", "*.txtar")
	files, err := filepath.Glob(pattern)
	test.Ok(f, err)

	for _, file := range files {
		archive, err := txtar.ParseFile(file)
		test.Ok(f, err)

		if archive == nil {
			f.Fatal("txtar.ParseFile returned nil archive")
		}

		src, ok := archive.Read("src.txt")
		test.True(f, ok, test.Context("%s missing src.txt", file))

		f.Add(src)
	}

	f.Add(`curl -sSL -XPOST 'https://a.b' -d "x=1" --json '{"a": [1, 2]}'`)
	f.Add(`$'\x'`)
	f.Add(`"\`)

	// Property: The scanner never panics or loops indefinitely, fuzz
	// by default will catch both of these
	f.Fuzz(func(t *testing.T, src string) {
		scanner := scanner.New("fuzz", []byte(src))

		for {
			tok := scanner.Scan()
			if tok.Is(token.EOF, token.Error) {
				break
			}

			// Property: Positions must be positive integers
			test.True(t, tok.Start >= 0, test.Context("token start position (%d) was negative", tok.Start))
			test.True(t, tok.End >= 0, test.Context("token end position (%d) was negative", tok.End))

			// Property: The kind must be one of the known kinds
			test.True(
				t,
				(tok.Kind >= token.EOF) && (tok.Kind <= token.Bare),
				test.Context("token %s was not one of the pre-defined kinds", tok),
			)

			// Property: End must be >= Start
			test.True(t, tok.End >= tok.Start, test.Context("token %s had invalid start and end positions", tok))

			// Property: End must never run past the input
			test.True(t, tok.End <= len(src), test.Context("token %s ends beyond the input", tok))
		}
	})
}

func FuzzNormalise(f *testing.F) {
	f.Add("curl https://a.b \\\n -v")
	f.Add("```\n$ curl a.b;\n```")
	f.Add("\u201ccurl\u201d\r\n")

	// Property: Normalise is idempotent
	f.Fuzz(func(t *testing.T, src string) {
		once := scanner.Normalise(src)
		twice := scanner.Normalise(once)

		test.Equal(t, twice, once, test.Context("Normalise(%q) was not idempotent", src))
	})
}

func BenchmarkScanner(b *testing.B) {
	file := filepath.Join("testdata", "valid", "post-json.txtar")
	archive, err := txtar.ParseFile(file)
	test.Ok(b, err)

	if archive == nil {
		b.Fatal("txtar.ParseFile returned nil archive")
	}

	src, ok := archive.Read("src.txt")
	test.True(b, ok, test.Context("%s missing src.txt", file))

	for b.Loop() {
		s := scanner.New("bench", []byte(src))

		for {
			tok := s.Scan()
			if tok.Is(token.EOF, token.Error) {
				break
			}
		}
	}
}
