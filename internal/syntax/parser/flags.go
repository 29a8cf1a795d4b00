package parser

import (
	"net/url"
	"slices"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/syntax/ast"
)

// handler describes how a single curl flag is folded into an [ast.Command].
type handler struct {
	// fold applies the flag (and its argument, if it takes one) to the command.
	fold func(cmd *ast.Command, arg ast.Arg)

	// long is the canonical long form of the flag e.g. "--header".
	long string

	// arg names the argument for error messages e.g. "header", empty for
	// boolean flags that take no argument.
	arg string

	// note, if set, is reported as a warning when the flag is used because
	// generated code cannot reproduce its effect.
	note string
}

// takesValue reports whether the flag consumes an argument.
func (h handler) takesValue() bool {
	return h.arg != ""
}

// flagSpec declares a handler and every alias it is known by.
type flagSpec struct {
	aliases []string
	handler handler
}

// flags is the table of every curl flag the parser recognises, keyed by every
// long and short alias.
//
//nolint:gochecknoglobals // Effectively a constant lookup table
var flags = buildFlags([]flagSpec{
	{aliases: []string{"-X", "--request"}, handler: handler{arg: "method", fold: setMethod}},
	{aliases: []string{"-H", "--header"}, handler: handler{arg: "header", fold: addHeader}},
	{aliases: []string{"-d", "--data", "--data-ascii"}, handler: handler{arg: "data", fold: foldData(ast.DataASCII)}},
	{aliases: []string{"--data-raw"}, handler: handler{arg: "data", fold: foldData(ast.DataRaw)}},
	{aliases: []string{"--data-binary"}, handler: handler{arg: "data", fold: foldData(ast.DataBinary)}},
	{aliases: []string{"--data-urlencode"}, handler: handler{arg: "data", fold: foldData(ast.DataURLEncode)}},
	{aliases: []string{"--json"}, handler: handler{arg: "JSON", fold: foldData(ast.DataJSON)}},
	{aliases: []string{"-F", "--form", "--form-string"}, handler: handler{arg: "form field", fold: addForm}},
	{aliases: []string{"-u", "--user"}, handler: handler{arg: "credentials", fold: setUser}},
	{aliases: []string{"--oauth2-bearer"}, handler: handler{arg: "token", fold: setBearer}},
	{aliases: []string{"-A", "--user-agent"}, handler: handler{arg: "user agent", fold: setUserAgent}},
	{aliases: []string{"-e", "--referer"}, handler: handler{arg: "referer", fold: setReferer}},
	{aliases: []string{"-b", "--cookie"}, handler: handler{arg: "cookie", fold: addCookie}},
	{aliases: []string{"-m", "--max-time"}, handler: handler{arg: "seconds", fold: setMaxTime}},
	{aliases: []string{"--connect-timeout"}, handler: handler{arg: "seconds", fold: setConnectTimeout}},
	{aliases: []string{"-o", "--output"}, handler: handler{arg: "file", fold: setOutput}},
	{aliases: []string{"--url"}, handler: handler{arg: "URL", fold: addURL}},
	{aliases: []string{"-k", "--insecure"}, handler: handler{fold: setInsecure}},
	{aliases: []string{"--compressed"}, handler: handler{fold: setCompressed}},
	{aliases: []string{"-L", "--location"}, handler: handler{fold: setLocation}},
	{aliases: []string{"-G", "--get"}, handler: handler{fold: setGet}},
	{aliases: []string{"-I", "--head"}, handler: handler{fold: setHead}},

	// Flags that only affect how curl itself reports things, they have no
	// meaning in generated code so are silently dropped
	{aliases: []string{"-s", "--silent"}, handler: handler{fold: ignore}},
	{aliases: []string{"-S", "--show-error"}, handler: handler{fold: ignore}},
	{aliases: []string{"-v", "--verbose"}, handler: handler{fold: ignore}},
	{aliases: []string{"-i", "--include"}, handler: handler{fold: ignore}},
	{aliases: []string{"-f", "--fail"}, handler: handler{fold: ignore}},
	{aliases: []string{"--fail-with-body"}, handler: handler{fold: ignore}},
	{aliases: []string{"-#", "--progress-bar"}, handler: handler{fold: ignore}},
	{aliases: []string{"--no-progress-meter"}, handler: handler{fold: ignore}},
	{aliases: []string{"-N", "--no-buffer"}, handler: handler{fold: ignore}},
	{aliases: []string{"-O", "--remote-name"}, handler: handler{fold: ignore}},
	{aliases: []string{"-w", "--write-out"}, handler: handler{arg: "format", fold: ignore}},
	{aliases: []string{"-D", "--dump-header"}, handler: handler{arg: "file", fold: ignore}},
	{aliases: []string{"--http1.0", "--http1.1", "--http2", "--http2-prior-knowledge", "--http3"}, handler: handler{fold: ignore}},
	{aliases: []string{"-4", "--ipv4", "-6", "--ipv6"}, handler: handler{fold: ignore}},

	// Flags that change behaviour in ways the generated code does not reproduce
	{aliases: []string{"-x", "--proxy"}, handler: handler{arg: "proxy", fold: ignore, note: "proxy settings are not carried over"}},
	{aliases: []string{"-c", "--cookie-jar"}, handler: handler{arg: "file", fold: ignore, note: "cookie jars are not carried over"}},
	{aliases: []string{"--cacert"}, handler: handler{arg: "file", fold: ignore, note: "custom CA certificates are not carried over"}},
	{aliases: []string{"-E", "--cert"}, handler: handler{arg: "certificate", fold: ignore, note: "client certificates are not carried over"}},
	{aliases: []string{"--key"}, handler: handler{arg: "key", fold: ignore, note: "client keys are not carried over"}},
	{aliases: []string{"--resolve"}, handler: handler{arg: "host:port:addr", fold: ignore, note: "host resolution overrides are not carried over"}},
	{aliases: []string{"--retry"}, handler: handler{arg: "count", fold: ignore, note: "use the retry option to generate retry logic"}},
	{aliases: []string{"--retry-delay", "--retry-max-time"}, handler: handler{arg: "seconds", fold: ignore}},
	{aliases: []string{"--max-redirs"}, handler: handler{arg: "count", fold: ignore, note: "redirect limits are not carried over"}},
	{aliases: []string{"--limit-rate"}, handler: handler{arg: "speed", fold: ignore, note: "rate limits are not carried over"}},
	{aliases: []string{"-r", "--range"}, handler: handler{arg: "range", fold: ignore, note: "use a Range header instead"}},
})

// buildFlags flattens the flag specs into a map of alias to handler.
func buildFlags(specs []flagSpec) map[string]handler {
	table := make(map[string]handler, len(specs)*2)

	for _, spec := range specs {
		h := spec.handler

		for _, alias := range spec.aliases {
			if strings.HasPrefix(alias, "--") && h.long == "" {
				h.long = alias
			}
		}

		if h.long == "" {
			h.long = spec.aliases[0]
		}

		for _, alias := range spec.aliases {
			table[alias] = h
		}
	}

	return table
}

// longFlags returns the sorted list of every known long flag, used for suggestions.
func longFlags() []string {
	names := make([]string, 0, len(flags))
	for alias := range flags {
		if strings.HasPrefix(alias, "--") {
			names = append(names, alias)
		}
	}

	slices.Sort(names)

	return names
}

// suggest returns the known flag closest to the unknown one, or "" if nothing
// is close enough to be a plausible typo.
func suggest(unknown string) string {
	if !strings.HasPrefix(unknown, "--") {
		return ""
	}

	best := ""
	bestDistance := 3 // Anything further away than 2 edits isn't a typo

	for _, name := range longFlags() {
		if d := levenshtein(unknown, name); d < bestDistance {
			best = name
			bestDistance = d
		}
	}

	return best
}

// levenshtein returns the edit distance between a and b.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i

		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func setMethod(cmd *ast.Command, arg ast.Arg) { cmd.Method = &arg }
func addHeader(cmd *ast.Command, arg ast.Arg) { cmd.Headers = append(cmd.Headers, arg) }
func addForm(cmd *ast.Command, arg ast.Arg) { cmd.Form = append(cmd.Form, arg) }
func setUser(cmd *ast.Command, arg ast.Arg) { cmd.User = &arg }
func setBearer(cmd *ast.Command, arg ast.Arg) { cmd.Bearer = &arg }
func setUserAgent(cmd *ast.Command, arg ast.Arg) { cmd.UserAgent = &arg }
func setReferer(cmd *ast.Command, arg ast.Arg) { cmd.Referer = &arg }
func addCookie(cmd *ast.Command, arg ast.Arg) { cmd.Cookies = append(cmd.Cookies, arg) }
func setMaxTime(cmd *ast.Command, arg ast.Arg) { cmd.MaxTime = &arg }
func setConnectTimeout(cmd *ast.Command, arg ast.Arg) { cmd.ConnectTimeout = &arg }
func setOutput(cmd *ast.Command, arg ast.Arg) { cmd.Output = &arg }
func addURL(cmd *ast.Command, arg ast.Arg) { cmd.URLs = append(cmd.URLs, arg) }
func setInsecure(cmd *ast.Command, _ ast.Arg) { cmd.Insecure = true }
func setCompressed(cmd *ast.Command, _ ast.Arg) { cmd.Compressed = true }
func setLocation(cmd *ast.Command, _ ast.Arg) { cmd.Location = true }
func setGet(cmd *ast.Command, _ ast.Arg) { cmd.Get = true }
func setHead(cmd *ast.Command, _ ast.Arg) { cmd.Head = true }
func ignore(cmd *ast.Command, arg ast.Arg) { cmd.Ignored = append(cmd.Ignored, arg) }

// foldData returns the fold function for a data flag of the given kind.
//
// Successive -d style flags are joined with '&' like curl does, while --data-raw
// and --data-binary start a fresh payload. --json values are concatenated as is.
// A leading '@' on -d, --data-binary and --json refers to a file.
func foldData(kind ast.DataKind) func(cmd *ast.Command, arg ast.Arg) {
	return func(cmd *ast.Command, arg ast.Arg) {
		body := &cmd.Body
		value := arg.Text()
		continuing := !body.IsEmpty()

		switch kind {
		case ast.DataRaw:
			body.Payload, body.File = value, ""
			body.Kind = kind
		case ast.DataBinary:
			body.Payload, body.File = value, ""
			if file, ok := strings.CutPrefix(value, "@"); ok {
				body.Payload, body.File = "", file
			}

			body.Kind = kind
		case ast.DataJSON:
			cmd.JSON = true

			if file, ok := strings.CutPrefix(value, "@"); ok {
				body.Payload, body.File = "", file
			} else {
				body.Payload += value
			}

			body.Kind = kind
		case ast.DataURLEncode:
			appendData(body, urlencodeData(value), continuing)
		default:
			if file, ok := strings.CutPrefix(value, "@"); ok {
				body.Payload, body.File = "", file
				body.Kind = kind

				break
			}

			appendData(body, value, continuing)
		}

		body.Parts = append(body.Parts, arg)
	}
}

// appendData adds value to the body payload, joined by '&' if there was
// already data.
func appendData(body *ast.Body, value string, continuing bool) {
	if continuing && body.File == "" {
		body.Payload += "&" + value
		return
	}

	body.Payload, body.File = value, ""
	body.Kind = ast.DataASCII
}

// urlencodeData applies the --data-urlencode rules to value:
//
//   - "content" and "=content" encode the whole content
//   - "name=content" encodes only the content
func urlencodeData(value string) string {
	name, content, found := strings.Cut(value, "=")
	if !found {
		return escape(value)
	}

	if name == "" {
		return escape(content)
	}

	return name + "=" + escape(content)
}

// escape percent encodes s the way curl does, with spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
