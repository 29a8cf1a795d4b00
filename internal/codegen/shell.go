package codegen

import (
	"strconv"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// shell generates a bash script calling curl or HTTPie.
//
// Arguments are collected in arrays so the command reads the same whether
// it's run directly, captured or retried.
type shell struct {
	*gen
	httpie bool
}

// emitCurl is the emitter for shell/curl.
func emitCurl(g *gen) program {
	return shell{gen: g}.program()
}

// emitHTTPie is the emitter for shell/httpie.
func emitHTTPie(g *gen) program {
	return shell{gen: g, httpie: true}.program()
}

func (s shell) program() program {
	return program{
		FileName: s.snake() + ".sh",
		Preamble: s.preamble(),
		Imports:  s.requires(),
		Helpers:  s.helpers(),
		Main:     s.function(),
		Entry:    Block{{Text: s.snake()}},
	}
}

func (s shell) preamble() Block {
	w := newWriter("#")
	w.line("#!/usr/bin/env bash")
	s.intro(w)
	w.line("set -euo pipefail")

	return w.Block()
}

// requires fails fast if an environment variable the script needs is unset.
func (s shell) requires() Block {
	w := newWriter("#")

	for _, name := range s.envNames() {
		w.line(`: "${%s:?%s must be set}"`, name, name)
	}

	return w.Block()
}

// value renders a value as a single shell word, double quoted with ${NAME}
// references if it uses environment variables.
func (s shell) value(value envvars.Value) string {
	if value.IsLiteral() {
		return shellWord(value.Text())
	}

	var b strings.Builder

	b.WriteByte('"')

	for _, part := range value {
		if part.IsEnv() {
			b.WriteString("${" + part.Env + "}")
			continue
		}

		quoted := shellDoubleQuote.quote(part.Text)
		b.WriteString(quoted[1 : len(quoted)-1])
	}

	b.WriteByte('"')

	return b.String()
}

// prefixed returns value with a literal prefix.
func prefixed(prefix string, value envvars.Value) envvars.Value {
	return append(envvars.Literal(prefix), value...)
}

// report returns the command reporting an error message, which must already
// be a shell word.
func (s shell) report(message string) string {
	if s.logging() {
		return "log " + message
	}

	return "echo " + message + " >&2"
}

// helpers declares the logging and retry functions.
func (s shell) helpers() Block {
	w := newWriter("#")

	if s.logging() {
		w.open("log() {")
		w.line("%s", `echo "[$(date -u +%Y-%m-%dT%H:%M:%SZ)] $*" >&2`)
		w.close("}")
	}

	// curl retries natively
	if !s.retry() || !s.httpie {
		return w.Block()
	}

	if s.logging() {
		w.blank()
	}

	w.note("Retries network errors, timeouts and 5xx responses with exponential backoff.")
	w.open("with_retry() {")
	w.line("local attempt=1 code")
	w.open("while true; do")
	w.line(`code=0`)
	w.line(`"$@" || code=$?`)
	w.open(`if [ "$code" -ne 1 ] && [ "$code" -ne 2 ] && [ "$code" -ne 5 ] || [ "$attempt" -ge %d ]; then`, s.attempts())
	w.line(`return "$code"`)
	w.close("fi")

	if s.logging() {
		w.line(`log "Attempt $attempt failed, retrying"`)
	}

	w.line(`sleep "$((1 << (attempt - 1)))"`)
	w.line("attempt=$((attempt + 1))")
	w.close("done")
	w.close("}")

	return w.Block()
}

// function declares the request function.
func (s shell) function() Block {
	f := function{
		Open:  Block{{Text: s.snake() + "() {"}},
		Build: s.build(),
		Close: Block{{Text: "}"}},
	}

	if s.httpie {
		f.Execute = s.httpieExecute()
	} else {
		f.Execute = s.curlExecute()
	}

	return f.Block()
}

// array writes a local array declaration, one element per line.
func array(w *writer, name string, elements []string) {
	if len(elements) == 0 {
		w.line("local %s=()", name)
		return
	}

	w.open("local %s=(", name)

	for _, element := range elements {
		w.line("%s", element)
	}

	w.close(")")
}

// build declares the url and the argument arrays.
func (s shell) build() Block {
	w := newWriter("#")
	w.line("local url=%s", s.value(s.url()))

	if s.httpie {
		array(w, "options", s.httpieOptions())
		array(w, "items", s.httpieItems())
	} else {
		array(w, "args", s.curlArgs())
	}

	if s.logging() {
		w.blank()
		w.line("log %s", shellWord("Sending "+s.method()+" request to "+s.baseURL()))
	}

	return w.Block()
}

// curlArgs returns the arguments for curl, the url last.
func (s shell) curlArgs() []string {
	args := []string{"--silent", "--show-error"}

	if s.method() != "GET" || s.hasBody() {
		args = append(args, "--request "+shellWord(s.method()))
	}

	for _, h := range s.headers {
		args = append(args, "--header "+s.value(prefixed(h.Name+": ", h.Value)))
	}

	if s.basicAuth() {
		args = append(args, "--user "+s.value(prefixed(s.username()+":", s.password())))
	}

	body := s.body()

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		args = append(args, "--data-binary "+shellWord("@"+body.File))
	case body.Kind == spec.BodyMultipart:
		for _, field := range body.Fields {
			if !field.File {
				args = append(args, "--form-string "+shellWord(field.Name+"="+field.Value))
				continue
			}

			part := field.Name + "=@" + field.Value
			if field.ContentType != "" {
				part += ";type=" + field.ContentType
			}

			args = append(args, "--form "+shellWord(part))
		}
	default:
		args = append(args, "--data-raw "+shellWord(s.payload()))
	}

	if s.timeout > 0 {
		args = append(args, "--max-time "+s.seconds())
	}

	if s.insecure {
		args = append(args, "--insecure")
	}

	if s.request.Flags.FollowRedirects {
		args = append(args, "--location")
	}

	if s.request.Flags.Compressed {
		args = append(args, "--compressed")
	}

	if out := s.output(); out != "" {
		args = append(args, "--output "+shellWord(out))
	}

	if s.retry() && s.attempts() > 1 {
		args = append(args, "--retry "+strconv.Itoa(s.attempts()-1))
	}

	switch {
	case s.comprehensive():
		args = append(args, `--write-out '\n%{http_code}'`)
	case s.checked():
		args = append(args, "--fail-with-body")
	}

	return append(args, `"$url"`)
}

// curlExecute runs curl, checking the exit code and status if asked.
func (s shell) curlExecute() Block {
	w := newWriter("#")

	if !s.comprehensive() {
		w.line(`curl "${args[@]}"`)
		return w.Block()
	}

	w.line("local response code=0")
	w.line(`response=$(curl "${args[@]}") || code=$?`)
	w.blank()
	w.open(`case "$code" in`)
	w.line("0) ;;")
	w.line("28) %s; return 1 ;;", s.report(`"Request timed out"`))
	w.line("*) %s; return 1 ;;", s.report(`"Network error (curl exit $code)"`))
	w.close("esac")
	w.blank()
	w.line(`local status=${response##*$'\n'}`)
	w.line("%s", `local body=${response%$'\n'*}`)

	if s.logging() {
		w.line(`log "Received $status"`)
	}

	w.blank()
	w.open(`if [ "$status" -ge 500 ]; then`)
	w.line("%s", s.report(`"Server error $status: $body"`))
	w.line("return 1")
	w.close("fi")
	w.open(`if [ "$status" -ge 400 ]; then`)
	w.line("%s", s.report(`"Client error $status: $body"`))
	w.line("return 1")
	w.close("fi")
	w.blank()
	w.line("%s", `printf '%s\n' "$body"`)

	return w.Block()
}

// httpieOptions returns the options for http, everything before the method.
func (s shell) httpieOptions() []string {
	var options []string

	if s.body().File == "" {
		options = append(options, "--ignore-stdin")
	}

	options = append(options, "--body")

	if s.checked() {
		options = append(options, "--check-status")
	}

	if s.timeout > 0 {
		options = append(options, "--timeout="+s.seconds())
	}

	if s.insecure {
		options = append(options, "--verify=no")
	}

	if s.request.Flags.FollowRedirects {
		options = append(options, "--follow")
	}

	if s.basicAuth() {
		options = append(options, "--auth "+s.value(prefixed(s.username()+":", s.password())))
	}

	body := s.body()

	switch {
	case body.Kind == spec.BodyNone, body.File != "":
	case body.Kind == spec.BodyMultipart:
		options = append(options, "--multipart")
	case body.Kind == spec.BodyForm && len(body.Fields) != 0 && !duplicateNames(body.Fields):
		options = append(options, "--form")
	default:
		options = append(options, "--raw "+shellWord(s.payload()))
	}

	if out := s.output(); out != "" {
		options = append(options, "--output "+shellWord(out))
	}

	return options
}

// httpieItems returns the request items for http, everything after the url.
func (s shell) httpieItems() []string {
	var items []string

	for _, h := range s.headers {
		items = append(items, s.value(prefixed(h.Name+":", h.Value)))
	}

	body := s.body()

	switch {
	case body.Kind == spec.BodyMultipart:
		for _, field := range body.Fields {
			if !field.File {
				items = append(items, shellWord(field.Name+"="+field.Value))
				continue
			}

			item := field.Name + "@" + field.Value
			if field.ContentType != "" {
				item += ";type=" + field.ContentType
			}

			items = append(items, shellWord(item))
		}
	case body.Kind == spec.BodyForm && len(body.Fields) != 0 && !duplicateNames(body.Fields) && body.File == "":
		for _, field := range body.Fields {
			items = append(items, shellWord(field.Name+"="+field.Value))
		}
	default:
	}

	return items
}

// httpieExecute runs http, checking the exit code if asked.
func (s shell) httpieExecute() Block {
	w := newWriter("#")

	command := `http "${options[@]}" ` + shellWord(s.method()) + ` "$url" "${items[@]}"`
	if s.retry() {
		command = "with_retry " + command
	}

	if file := s.body().File; file != "" {
		command += " < " + shellWord(file)
	}

	switch {
	case s.comprehensive():
		w.line("local body code=0")
		w.line("body=$(%s) || code=$?", command)
		w.blank()
		w.open(`case "$code" in`)
		w.line("0) ;;")
		w.line("2) %s; return 1 ;;", s.report(`"Request timed out"`))
		w.line("4) %s; return 1 ;;", s.report(`"Client error: $body"`))
		w.line("5) %s; return 1 ;;", s.report(`"Server error: $body"`))
		w.line("*) %s; return 1 ;;", s.report(`"Network error (http exit $code)"`))
		w.close("esac")
		w.blank()
		w.line("%s", `printf '%s\n' "$body"`)
	case s.checked():
		w.open("%s || {", command)
		w.line("%s", s.report(`"Request failed (http exit $?)"`))
		w.line("return 1")
		w.close("}")
	default:
		w.line("%s", command)
	}

	return w.Block()
}
