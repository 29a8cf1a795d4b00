package parser_test

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"testing"

	"go.followtheprocess.codes/test"
	"go.followtheprocess.codes/uncurl/internal/errs"
	"go.followtheprocess.codes/uncurl/internal/syntax/ast"
	"go.followtheprocess.codes/uncurl/internal/syntax/parser"
	"go.uber.org/goleak"
)

var (
	_ = flag.Bool("update", false, "Update snapshots")
	_ = flag.Bool("clean", false, "Erase and regenerate snapshots")
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string // Name of the test case
		src  string // Curl command to parse
		want string // Expected summary of the parsed command
	}{
		{
			name: "simple url",
			src:  "curl https://a.b/c",
			want: "url: https://a.b/c\n",
		},
		{
			name: "no curl prefix",
			src:  "https://a.b/c",
			want: "url: https://a.b/c\n",
		},
		{
			name: "curl by path",
			src:  "/usr/bin/curl https://a.b/c",
			want: "url: https://a.b/c\n",
		},
		{
			name: "method and header",
			src:  "curl -X POST https://a.b -H 'Accept: application/json'",
			want: "url: https://a.b\nmethod: POST\nheader: Accept: application/json\n",
		},
		{
			name: "headers keep order",
			src:  `curl https://a.b -H "X-One: 1" -H "X-Two: 2"`,
			want: "url: https://a.b\nheader: X-One: 1\nheader: X-Two: 2\n",
		},
		{
			name: "data concatenation",
			src:  "curl a.b -d a=1 -d b=2",
			want: "url: a.b\nbody(data): a=1&b=2\n",
		},
		{
			name: "data raw starts fresh",
			src:  `curl a.b -d a=1 --data-raw '{"x":1}'`,
			want: "url: a.b\nbody(data-raw): {\"x\":1}\n",
		},
		{
			name: "data binary file",
			src:  "curl a.b --data-binary @payload.bin",
			want: "url: a.b\nfile(data-binary): payload.bin\n",
		},
		{
			name: "data file",
			src:  "curl a.b -d @body.json",
			want: "url: a.b\nfile(data): body.json\n",
		},
		{
			name: "data urlencode",
			src:  "curl a.b --data-urlencode 'q=hello world' --data-urlencode 'a&b'",
			want: "url: a.b\nbody(data): q=hello%20world&a%26b\n",
		},
		{
			name: "json flag",
			src:  `curl a.b --json '{"a":1}'`,
			want: "url: a.b\nbody(json): {\"a\":1}\nflags: json\n",
		},
		{
			name: "combined short flags",
			src:  "curl -sSLk https://a.b",
			want: "url: https://a.b\nflags: insecure location\nignored: 2\n",
		},
		{
			name: "attached short value",
			src:  "curl -XPUT https://a.b",
			want: "url: https://a.b\nmethod: PUT\n",
		},
		{
			name: "cluster ending in flag with value",
			src:  "curl -sX DELETE https://a.b",
			want: "url: https://a.b\nmethod: DELETE\nignored: 1\n",
		},
		{
			name: "long flags with equals",
			src:  "curl --request=PATCH --url=https://a.b --header='X-Id: 1'",
			want: "url: https://a.b\nmethod: PATCH\nheader: X-Id: 1\n",
		},
		{
			name: "quoted data that looks like a long flag",
			src:  "curl -d '--name=alice' https://a.b/c",
			want: "url: https://a.b/c\nbody(data): --name=alice\n",
		},
		{
			name: "quoted user that looks like a long flag",
			src:  "curl -u '--a=b' https://a.b",
			want: "url: https://a.b\nuser: --a=b\n",
		},
		{
			name: "attached value keeps later equals",
			src:  "curl --data=a=1 a.b",
			want: "url: a.b\nbody(data): a=1\n",
		},
		{
			name: "form fields",
			src:  "curl https://a.b -F name=bob -F avatar=@me.png",
			want: "url: https://a.b\nform: name=bob\nform: avatar=@me.png\n",
		},
		{
			name: "user and bearer",
			src:  "curl https://a.b -u alice:pw --oauth2-bearer tok",
			want: "url: https://a.b\nuser: alice:pw\nbearer: tok\n",
		},
		{
			name: "misc",
			src:  "curl https://a.b -A agent/1.0 -e https://ref.er -b 'a=1' -m 2.5 --connect-timeout 3 -o out.txt -G -I --compressed",
			want: "url: https://a.b\nuser-agent: agent/1.0\nreferer: https://ref.er\ncookie: a=1\nmax-time: 2.5\nconnect-timeout: 3\noutput: out.txt\nflags: compressed get head\n",
		},
		{
			name: "first url wins",
			src:  "curl https://a.b https://c.d",
			want: "url: https://a.b\n",
		},
		{
			name: "url preferred over bare word",
			src:  "curl oops https://a.b",
			want: "url: https://a.b\n",
		},
		{
			name: "line continuation",
			src:  "curl https://a.b \\\n  -H 'Accept: */*' \\\n  -X POST",
			want: "url: https://a.b\nmethod: POST\nheader: Accept: */*\n",
		},
		{
			name: "smart quotes from a chat app",
			src:  "curl https://a.b -H \u201cAccept: */*\u201d",
			want: "url: https://a.b\nheader: Accept: */*\n",
		},
		{
			name: "no url",
			src:  `curl -H "X: y"`,
			want: "header: X: y\n",
		},
		{
			name: "double dash makes everything positional",
			src:  "curl -- https://a.b",
			want: "url: https://a.b\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			p := parser.New(tt.name, []byte(tt.src))

			cmd, err := p.Parse()
			test.Ok(t, err)

			test.Diff(t, summarise(cmd), tt.want)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string              // Name of the test case
		src      string              // Curl command to parse
		position string              // Expected error position, if any
		flag     string              // Expected offending flag, if any
		contains string              // Substring the error message must contain
		kind     errs.ParseErrorKind // Expected kind of parse error
	}{
		{
			name: "empty",
			src:  "",
			kind: errs.EmptyInput,
		},
		{
			name: "whitespace",
			src:  " \n\t  ",
			kind: errs.EmptyInput,
		},
		{
			name: "only a code fence",
			src:  "```\n```",
			kind: errs.EmptyInput,
		},
		{
			name:     "unterminated quote",
			src:      "curl -H 'x",
			kind:     errs.UnterminatedQuote,
			position: "unterminated quote:1:9",
			contains: "unterminated single quote",
		},
		{
			name:     "missing header value",
			src:      "curl https://a.b -H",
			kind:     errs.MissingFlagValue,
			flag:     "-H",
			contains: "header value",
		},
		{
			name:     "missing method in cluster",
			src:      "curl https://a.b -sX",
			kind:     errs.MissingFlagValue,
			flag:     "-X",
			contains: "method value",
		},
		{
			name: "too big",
			src:  "curl " + strings.Repeat("a", parser.MaxInputSize),
			kind: errs.SizeLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parser.New(tt.name, []byte(tt.src))

			_, err := p.Parse()
			test.Err(t, err)
			test.True(t, errors.Is(err, errs.ErrParse), test.Context("error %v did not match ErrParse", err))

			var parseErr *errs.ParseError
			test.True(t, errors.As(err, &parseErr), test.Context("error %T was not a *errs.ParseError", err))

			test.Equal(t, parseErr.Kind, tt.kind)

			if tt.position != "" {
				test.Equal(t, parseErr.Position, tt.position)
			}

			if tt.flag != "" {
				test.Equal(t, parseErr.Flag, tt.flag)
			}

			if tt.contains != "" {
				test.True(
					t,
					strings.Contains(parseErr.Error(), tt.contains),
					test.Context("error %q did not contain %q", parseErr.Error(), tt.contains),
				)
			}
		})
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name string   // Name of the test case
		src  string   // Curl command to parse
		want []string // Substrings expected in the diagnostics, in order
	}{
		{
			name: "clean",
			src:  "curl https://a.b -H 'Accept: */*'",
			want: nil,
		},
		{
			name: "unknown flag with suggestion",
			src:  "curl --hedaer 'X: y' https://a.b",
			want: []string{"unknown flag --hedaer, did you mean --header?"},
		},
		{
			name: "unknown flag no suggestion",
			src:  "curl --frobnicate https://a.b",
			want: []string{"unknown flag --frobnicate"},
		},
		{
			name: "unknown flag with attached value",
			src:  "curl --frobnicate=1 https://a.b",
			want: []string{"unknown flag --frobnicate"},
		},
		{
			name: "quoted argument that looks like a long flag",
			src:  "curl -d '--name=alice' https://a.b/c",
			want: nil,
		},
		{
			name: "unknown short flag",
			src:  "curl -Z https://a.b",
			want: []string{"unknown flag -Z"},
		},
		{
			name: "extra url",
			src:  "curl https://a.b https://c.d",
			want: []string{`ignoring extra argument "https://c.d"`},
		},
		{
			name: "unreproducible flag",
			src:  "curl -x http://proxy:8080 https://a.b",
			want: []string{"-x is ignored, proxy settings are not carried over"},
		},
		{
			name: "boolean with value",
			src:  "curl --insecure=yes https://a.b",
			want: []string{`--insecure does not take a value, ignoring "yes"`},
		},
		{
			name: "missing url",
			src:  "curl -X GET",
			want: []string{"no URL found in curl command"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parser.New(tt.name, []byte(tt.src))

			_, err := p.Parse()
			test.Ok(t, err)

			diagnostics := p.Diagnostics()
			test.Equal(t, len(diagnostics), len(tt.want), test.Context("diagnostics: %v", diagnostics))

			for i, want := range tt.want {
				if i >= len(diagnostics) {
					break
				}

				test.True(
					t,
					strings.Contains(diagnostics[i].Msg, want),
					test.Context("diagnostic %q did not contain %q", diagnostics[i].Msg, want),
				)
			}
		})
	}
}

func FuzzParser(f *testing.F) {
	seeds := []string{
		"curl https://a.b",
		`curl -X POST https://api.example.com -H 'Content-Type: application/json' -d '{"a": 1}'`,
		"curl -sSLXPOST a.b --data-urlencode x=1 -F f=@file",
		"curl --url=a.b -u user:pw -- -x",
		`curl "unterminated`,
		"curl a.b -H",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	// Property: The parser never panics, and any error is a *errs.ParseError
	f.Fuzz(func(t *testing.T, src string) {
		p := parser.New("fuzz", []byte(src))

		_, err := p.Parse()
		if err != nil {
			var parseErr *errs.ParseError
			test.True(t, errors.As(err, &parseErr), test.Context("error %T was not a *errs.ParseError", err))
		}
	})
}

func BenchmarkParser(b *testing.B) {
	src := []byte(`curl -X POST https://api.example.com/v1/users \
  -H 'Content-Type: application/json' \
  -H 'Authorization: Bearer abc123' \
  -d '{"name": "Bob", "tags": ["a", "b"]}' \
  --compressed -sSL`)

	for b.Loop() {
		p := parser.New("bench", src)

		_, err := p.Parse()
		if err != nil {
			b.Fatalf("Parse returned an unexpected error: %v", err)
		}
	}
}

// summarise renders the interesting parts of a command, one per line, in a
// stable order.
func summarise(cmd ast.Command) string {
	var s strings.Builder

	line := func(label string, arg *ast.Arg) {
		if arg != nil {
			fmt.Fprintf(&s, "%s: %s\n", label, arg.Text())
		}
	}

	line("url", cmd.URL)
	line("method", cmd.Method)

	for _, header := range cmd.Headers {
		fmt.Fprintf(&s, "header: %s\n", header.Text())
	}

	if !cmd.Body.IsEmpty() {
		if cmd.Body.File != "" {
			fmt.Fprintf(&s, "file(%s): %s\n", cmd.Body.Kind, cmd.Body.File)
		} else {
			fmt.Fprintf(&s, "body(%s): %s\n", cmd.Body.Kind, cmd.Body.Payload)
		}
	}

	for _, form := range cmd.Form {
		fmt.Fprintf(&s, "form: %s\n", form.Text())
	}

	line("user", cmd.User)
	line("bearer", cmd.Bearer)
	line("user-agent", cmd.UserAgent)
	line("referer", cmd.Referer)

	for _, cookie := range cmd.Cookies {
		fmt.Fprintf(&s, "cookie: %s\n", cookie.Text())
	}

	line("max-time", cmd.MaxTime)
	line("connect-timeout", cmd.ConnectTimeout)
	line("output", cmd.Output)

	var set []string

	for _, f := range []struct {
		name string
		on   bool
	}{
		{"compressed", cmd.Compressed},
		{"get", cmd.Get},
		{"head", cmd.Head},
		{"insecure", cmd.Insecure},
		{"json", cmd.JSON},
		{"location", cmd.Location},
	} {
		if f.on {
			set = append(set, f.name)
		}
	}

	if len(set) != 0 {
		fmt.Fprintf(&s, "flags: %s\n", strings.Join(set, " "))
	}

	if len(cmd.Ignored) != 0 {
		fmt.Fprintf(&s, "ignored: %d\n", len(cmd.Ignored))
	}

	return s.String()
}
