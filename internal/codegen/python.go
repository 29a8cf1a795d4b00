package codegen

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// pythonIdentifier matches keys usable as TypedDict class attributes.
var pythonIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// pythonKeywords are the reserved words that cannot be used as attribute names.
//
//nolint:gochecknoglobals // Effectively a constant
var pythonKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await", "break",
	"class", "continue", "def", "del", "elif", "else", "except", "finally", "for",
	"from", "global", "if", "import", "in", "is", "lambda", "nonlocal", "not", "or",
	"pass", "raise", "return", "try", "while", "with", "yield",
}

// py generates Python for requests, httpx and aiohttp.
type py struct {
	*gen
	framework string
	async     bool
}

// emitPython is the emitter for python.
func emitPython(g *gen) program {
	p := py{
		gen:       g,
		framework: g.target.Framework,
		async:     g.target.Framework == "aiohttp" || (g.target.Framework == "httpx" && g.options.Async),
	}

	prog := program{
		FileName: g.snake() + ".py",
		Preamble: p.preamble(),
		Imports:  p.imports(),
		Types:    join(p.types(), p.errorTypes()),
		Helpers:  p.helpers(),
		Main:     p.function(),
		Entry:    p.entry(),
	}

	if g.options.IncludeTests {
		prog.Tests = p.tests()
		prog.TestFileName = "test_" + g.snake() + ".py"
		prog.Deps = append(prog.Deps, "pytest")

		if p.framework == "aiohttp" {
			prog.Deps = append(prog.Deps, "aioresponses")
		}
	}

	return prog
}

func (p py) preamble() Block {
	w := newWriter("#")
	p.intro(w)

	return w.Block()
}

// usesEnv reports whether any value references an environment variable.
func (p py) usesEnv() bool {
	return len(p.gen.env.Vars) != 0
}

// usesFiles reports whether the body or a multipart field is read from a file.
func (p py) usesFiles() bool {
	if p.body().File != "" {
		return true
	}

	return slices.ContainsFunc(p.body().Fields, func(f spec.Field) bool { return f.File })
}

func (p py) imports() Block {
	w := newWriter("#")

	var stdlib []string

	if p.async {
		stdlib = append(stdlib, "import asyncio")
	}

	if p.framework == "aiohttp" && (p.expectJSON || p.output() != "") {
		stdlib = append(stdlib, "import json")
	}

	if p.logging() {
		stdlib = append(stdlib, "import logging")
	}

	if p.usesEnv() {
		stdlib = append(stdlib, "import os")
	}

	if p.checked() && !p.logging() {
		stdlib = append(stdlib, "import sys")
	}

	if p.retry() && !p.async {
		stdlib = append(stdlib, "import time")
	}

	if p.usesFiles() || p.output() != "" {
		stdlib = append(stdlib, "from pathlib import Path")
	}

	if p.model != nil {
		stdlib = append(stdlib, "from typing import Any, NotRequired, TypedDict")
	}

	for _, line := range stdlib {
		w.line("%s", line)
	}

	if len(stdlib) != 0 {
		w.blank()
	}

	w.line("import %s", p.framework)

	return w.Block()
}

// env renders a reference to an environment variable.
func (p py) env(name string) string {
	return fmt.Sprintf("os.environ[%s]", cQuote.quote(name))
}

// value renders a value as a string expression.
func (p py) value(value envvars.Value) string {
	return concat(value, cQuote, p.env, " + ")
}

// types declares TypedDicts for the JSON body.
func (p py) types() Block {
	if p.model == nil {
		return nil
	}

	w := newWriter("#")

	// Nested types first so every annotation refers to something already defined
	for i, s := range slices.Backward(p.model.Structs) {
		if i != len(p.model.Structs)-1 {
			w.blank()
			w.blank()
		}

		if p.classSyntax(s) {
			w.open("class %s(TypedDict):", s.Name)

			for _, field := range s.Fields {
				w.line("%s: %s", field.Key, p.fieldType(field))
			}

			if len(s.Fields) == 0 {
				w.line("pass")
			}

			w.depth--

			continue
		}

		w.open("%s = TypedDict(", s.Name)
		w.line("%s,", cQuote.quote(s.Name))
		w.open("{")

		for _, field := range s.Fields {
			w.line("%s: %s,", cQuote.quote(field.Key), p.fieldType(field))
		}

		w.close("},")
		w.close(")")
	}

	if p.model.Root.Kind == shape.List {
		w.blank()
		w.blank()
		w.line("%s = %s", rootType, pythonType(p.model.Root))
	}

	return w.Block()
}

// classSyntax reports whether a struct can be declared with class syntax, which
// needs every key to be a valid attribute name.
func (p py) classSyntax(s shape.StructType) bool {
	for _, field := range s.Fields {
		if !pythonIdentifier.MatchString(field.Key) || slices.Contains(pythonKeywords, field.Key) {
			return false
		}
	}

	return true
}

// fieldType returns the annotation for a TypedDict field.
func (p py) fieldType(field shape.StructField) string {
	t := pythonType(field.Type)
	if field.Optional {
		return "NotRequired[" + t + "]"
	}

	return t
}

// pythonType returns the Python type annotation for an inferred type.
func pythonType(t shape.Type) string {
	var name string

	switch t.Kind {
	case shape.Boolean:
		name = "bool"
	case shape.Integer:
		name = "int"
	case shape.Float:
		name = "float"
	case shape.Text:
		name = "str"
	case shape.Struct:
		name = t.Name
	case shape.List:
		name = "list[" + pythonType(*t.Elem) + "]"
	case shape.Unknown:
		return "None"
	default:
		return "Any"
	}

	if t.Nullable {
		return name + " | None"
	}

	return name
}

// errorTypes declares the exceptions used by comprehensive error handling.
func (p py) errorTypes() Block {
	if !p.comprehensive() {
		return nil
	}

	w := newWriter("#")
	w.open("class HttpError(Exception):")
	w.line(`"""Raised for responses with a 4xx or 5xx status."""`)
	w.blank()
	w.open("def __init__(self, status: int, body: str) -> None:")
	w.line(`super().__init__(f"Request failed with status {status}")`)
	w.line("self.status = status")
	w.line("self.body = body")
	w.depth = 0
	w.blank()
	w.blank()
	w.open("class ClientError(HttpError):")
	w.line(`"""Raised for responses with a 4xx status."""`)
	w.depth = 0
	w.blank()
	w.blank()
	w.open("class ServerError(HttpError):")
	w.line(`"""Raised for responses with a 5xx status."""`)

	return w.Block()
}

// status returns the attribute holding the response status code.
func (p py) status() string {
	if p.framework == "aiohttp" {
		return "response.status"
	}

	return "response.status_code"
}

// networkError returns the base exception for transport failures.
func (p py) networkError() string {
	switch p.framework {
	case "httpx":
		return "httpx.HTTPError"
	case "aiohttp":
		return "aiohttp.ClientError"
	default:
		return "requests.RequestException"
	}
}

// timeoutError returns the exception raised when the request times out.
func (p py) timeoutError() string {
	switch p.framework {
	case "httpx":
		return "httpx.TimeoutException"
	case "aiohttp":
		return "TimeoutError"
	default:
		return "requests.Timeout"
	}
}

// helpers declares the logger and the retry helper.
func (p py) helpers() Block {
	w := newWriter("#")

	if p.logging() {
		w.line("logger = logging.getLogger(__name__)")
	}

	if !p.retry() {
		return w.Block()
	}

	if p.logging() {
		w.blank()
		w.blank()
	}

	def, await, sleep := "def", "", "time.sleep"
	if p.async {
		def, await, sleep = "async def", "await ", "await asyncio.sleep"
	}

	w.open("%s with_retry(send, attempts=%d):", def, p.attempts())
	w.line(`"""Retry network errors, 429 and 5xx responses with exponential backoff."""`)
	w.open("for attempt in range(1, attempts + 1):")
	w.open("try:")
	w.line("response = %ssend()", await)
	w.close("except %s:", p.networkError())
	w.depth++
	w.open("if attempt == attempts:")
	w.line("raise")
	w.depth -= 2
	w.open("else:")
	w.open("if (%s < 500 and %s != 429) or attempt == attempts:", p.status(), p.status())
	w.line("return response")
	w.depth -= 2
	w.blank()
	w.line("delay = 0.5 * 2 ** (attempt - 1)")

	if p.logging() {
		w.line("%s", `logger.warning("Attempt %d failed, retrying in %.1fs", attempt, delay)`)
	}

	w.line("%s(delay)", sleep)

	return w.Block()
}

// function builds the request function.
func (p py) function() Block {
	def := "def"
	if p.async {
		def = "async def"
	}

	signature := fmt.Sprintf("%s %s():", def, p.snake())

	if p.options.IncludeTests && p.framework == "httpx" {
		transport := "httpx.BaseTransport"
		if p.async {
			transport = "httpx.AsyncBaseTransport"
		}

		signature = fmt.Sprintf("%s %s(transport: %s | None = None):", def, p.snake(), transport)
	}

	f := function{
		Open:    Block{{Text: signature}},
		Build:   p.build(),
		Execute: p.execute(),
		Check:   p.check(),
		Handle:  p.handle(),
		Guard:   p.guard(),
	}

	return f.Block()
}

// build declares the url, headers and body.
func (p py) build() Block {
	w := newWriter("#")

	w.line("url = %s", p.value(p.url()))

	if len(p.headers) != 0 {
		w.open("headers = {")

		for _, h := range p.headers {
			w.line("%s: %s,", cQuote.quote(h.Name), p.value(h.Value))
		}

		w.close("}")
	}

	p.writeBody(w)

	if p.logging() {
		w.blank()
		w.line("logger.info(%s)", cQuote.quote("Sending "+p.method()+" request to "+p.baseURL()))
	}

	return w.Block()
}

// writeBody declares the request body, if there is one.
func (p py) writeBody(w *writer) {
	body := p.body()

	switch {
	case body.Kind == spec.BodyNone:
		return
	case body.File != "":
		p.fileNote(w)
		w.line("data = Path(%s).read_bytes()", cQuote.quote(body.File))
	case p.json != nil:
		declaration := "payload = "
		if p.model != nil {
			declaration = "payload: " + rootType + " = "
		}

		w.add(pythonLiteral.block(p.json, declaration, ""))
	case body.Kind == spec.BodyForm && len(body.Fields) != 0 && !duplicateNames(body.Fields):
		w.open("data = {")

		for _, field := range body.Fields {
			w.line("%s: %s,", cQuote.quote(field.Name), cQuote.quote(field.Value))
		}

		w.close("}")
	case body.Kind == spec.BodyMultipart && p.framework == "aiohttp":
		w.line("data = aiohttp.FormData()")

		for _, field := range body.Fields {
			if !field.File {
				w.line("data.add_field(%s, %s)", cQuote.quote(field.Name), cQuote.quote(field.Value))
				continue
			}

			args := fmt.Sprintf("%s, Path(%s).read_bytes(), filename=%s",
				cQuote.quote(field.Name), cQuote.quote(field.Value), cQuote.quote(path.Base(field.Value)))
			if field.ContentType != "" {
				args += ", content_type=" + cQuote.quote(field.ContentType)
			}

			w.line("data.add_field(%s)", args)
		}
	case body.Kind == spec.BodyMultipart:
		w.open("files = {")

		for _, field := range body.Fields {
			if !field.File {
				w.line("%s: (None, %s),", cQuote.quote(field.Name), cQuote.quote(field.Value))
				continue
			}

			contentType := ""
			if field.ContentType != "" {
				contentType = ", " + cQuote.quote(field.ContentType)
			}

			w.line("%s: (%s, Path(%s).read_bytes()%s),",
				cQuote.quote(field.Name), cQuote.quote(path.Base(field.Value)), cQuote.quote(field.Value), contentType)
		}

		w.close("}")
	default:
		w.line("data = %s", cQuote.quote(p.payload()))
	}
}

// duplicateNames reports whether any two fields share a name.
func duplicateNames(fields []spec.Field) bool {
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if seen[field.Name] {
			return true
		}

		seen[field.Name] = true
	}

	return false
}

// bodyArgument returns the keyword argument passing the body, empty if none.
func (p py) bodyArgument() string {
	body := p.body()

	switch {
	case body.Kind == spec.BodyNone:
		return ""
	case p.json != nil && body.File == "":
		return "json=payload"
	case body.Kind == spec.BodyMultipart && p.framework != "aiohttp":
		return "files=files"
	case p.framework == "httpx" && (body.Kind != spec.BodyForm || len(body.Fields) == 0 || duplicateNames(body.Fields)):
		// httpx takes raw bytes and strings as content, data is for forms
		return "content=data"
	default:
		return "data=data"
	}
}

// auth returns the basic auth credentials expression, empty if none.
func (p py) auth() string {
	if !p.basicAuth() {
		return ""
	}

	credentials := fmt.Sprintf("%s, %s", cQuote.quote(p.username()), p.value(p.password()))
	if p.framework == "aiohttp" {
		return "aiohttp.BasicAuth(" + credentials + ")"
	}

	return "(" + credentials + ")"
}

// call returns the lines of the call that sends the request.
func (p py) call() Block {
	w := newWriter("#")

	receiver := "requests"
	switch p.framework {
	case "httpx":
		receiver = "client"
	case "aiohttp":
		receiver = "session"
	}

	await := ""
	if p.async {
		await = "await "
	}

	w.open("%s%s.request(", await, receiver)
	w.line("%s,", cQuote.quote(p.method()))
	w.line("url,")

	if len(p.headers) != 0 {
		w.line("headers=headers,")
	}

	if arg := p.bodyArgument(); arg != "" {
		w.line("%s,", arg)
	}

	if auth := p.auth(); auth != "" {
		w.line("auth=%s,", auth)
	}

	if p.framework == "requests" {
		if p.timeout > 0 {
			w.line("timeout=%s,", p.seconds())
		}

		if p.insecure {
			w.line("verify=False,")
		}
	}

	w.close(")")

	return w.Block()
}

// client returns the line opening the client context, empty for requests.
func (p py) client() string {
	switch p.framework {
	case "httpx":
		var args []string

		if p.options.IncludeTests {
			args = append(args, "transport=transport")
		}

		if p.timeout > 0 {
			args = append(args, "timeout="+p.seconds())
		}

		if p.insecure {
			args = append(args, "verify=False")
		}

		if p.request.Flags.FollowRedirects {
			args = append(args, "follow_redirects=True")
		}

		client := "httpx.Client"
		with := "with"

		if p.async {
			client = "httpx.AsyncClient"
			with = "async with"
		}

		return fmt.Sprintf("%s %s(%s) as client:", with, client, strings.Join(args, ", "))
	case "aiohttp":
		var args []string

		if p.timeout > 0 {
			args = append(args, "timeout=aiohttp.ClientTimeout(total="+p.seconds()+")")
		}

		if p.insecure {
			args = append(args, "connector=aiohttp.TCPConnector(ssl=False)")
		}

		return fmt.Sprintf("async with aiohttp.ClientSession(%s) as session:", strings.Join(args, ", "))
	default:
		return ""
	}
}

// execute sends the request, inside the client context if there is one.
func (p py) execute() Block {
	w := newWriter("#")

	if client := p.client(); client != "" {
		w.open("%s", client)
	}

	if p.retry() {
		def := "def"
		if p.async {
			def = "async def"
		}

		w.open("%s send():", def)
		w.add(prefixFirst(p.call(), "return "))
		w.depth--
		w.blank()

		if p.async {
			w.line("response = await with_retry(send)")
		} else {
			w.line("response = with_retry(send)")
		}
	} else {
		w.add(prefixFirst(p.call(), "response = "))
	}

	if p.framework == "aiohttp" {
		if p.output() != "" {
			w.line("content = await response.read()")
		} else {
			w.line("text = await response.text()")
		}
	}

	return w.Block()
}

// prefixFirst returns a copy of b with prefix prepended to its first line.
func prefixFirst(b Block, prefix string) Block {
	if len(b) == 0 {
		return b
	}

	out := slices.Clone(b)
	out[0].Text = prefix + out[0].Text

	return out
}

// responseText returns the expression for the response body as text.
func (p py) responseText() string {
	if p.framework == "aiohttp" {
		if p.output() != "" {
			return "content.decode()"
		}

		return "text"
	}

	return "response.text"
}

// check checks the response status.
func (p py) check() Block {
	if !p.checked() {
		return nil
	}

	w := newWriter("#")

	if !p.comprehensive() {
		w.line("response.raise_for_status()")
		return w.Block()
	}

	w.open("if %s >= 500:", p.status())
	w.line("raise ServerError(%s, %s)", p.status(), p.responseText())
	w.close("if %s >= 400:", p.status())
	w.depth++
	w.line("raise ClientError(%s, %s)", p.status(), p.responseText())

	return w.Block()
}

// handle returns the response body.
func (p py) handle() Block {
	w := newWriter("#")

	if p.logging() {
		w.line(`logger.info("Received %%d", %s)`, p.status())
	}

	switch {
	case p.output() != "":
		content := "response.content"
		if p.framework == "aiohttp" {
			content = "content"
		}

		w.line("Path(%s).write_bytes(%s)", cQuote.quote(p.output()), content)
		w.line("return %s", content)
	case p.expectJSON && p.framework == "aiohttp":
		w.line("return json.loads(text)")
	case p.expectJSON:
		w.line("return response.json()")
	default:
		w.line("return %s", p.responseText())
	}

	return w.Block()
}

// report returns the statement reporting an error message.
func (p py) report(message string) string {
	if p.logging() {
		return "logger.error(" + message + ")"
	}

	return "print(" + message + ", file=sys.stderr)"
}

// guard returns the error handling wrapper for the function body.
func (p py) guard() func(Block) Block {
	if !p.checked() {
		return nil
	}

	return func(body Block) Block {
		w := newWriter("#")
		w.open("try:")
		w.add(body)
		w.depth = 0

		if p.comprehensive() {
			w.open("except ClientError as err:")
			w.line("%s", p.report(`f"Client error {err.status}: {err.body}"`))
			w.line("raise")
			w.close("except ServerError as err:")
			w.depth++
			w.line("%s", p.report(`f"Server error {err.status}: {err.body}"`))
			w.line("raise")
			w.close("except %s:", p.timeoutError())
			w.depth++
			w.line("%s", p.report(`"Request timed out"`))
			w.line("raise")
			w.close("except %s as err:", p.networkError())
			w.depth++
			w.line("%s", p.report(`f"Network error: {err}"`))
			w.line("raise")
		} else {
			w.open("except %s as err:", p.networkError())
			w.line("%s", p.report(`f"Request failed: {err}"`))
			w.line("raise")
		}

		return w.Block()
	}
}

// entry runs the request function when the file is executed as a script.
func (p py) entry() Block {
	w := newWriter("#")
	w.open(`if __name__ == "__main__":`)

	if p.logging() {
		w.line("logging.basicConfig(level=logging.INFO)")
	}

	if p.async {
		w.line("print(asyncio.run(%s()))", p.snake())
	} else {
		w.line("print(%s())", p.snake())
	}

	return w.Block()
}

// tests generates a pytest test file, mocking the HTTP client.
func (p py) tests() Block {
	w := newWriter("#")
	name := p.snake()

	switch p.framework {
	case "httpx":
		if p.async {
			w.line("import asyncio")
			w.blank()
		}

		w.line("import httpx")
	case "aiohttp":
		w.line("import asyncio")
		w.line("import re")
		w.blank()
		w.line("from aioresponses import aioresponses")
	default:
		w.line("from unittest import mock")
		w.blank()
		w.line("import requests")
	}

	w.line("import pytest")
	w.blank()
	w.line("from %s import %s", name, name)
	w.blank()

	if names := p.envNames(); len(names) != 0 {
		w.blank()
		w.line("@pytest.fixture(autouse=True)")
		w.open("def env(monkeypatch):")

		for _, env := range names {
			w.line("monkeypatch.setenv(%s, %s)", cQuote.quote(env), cQuote.quote("test"))
		}

		w.depth = 0
		w.blank()
	}

	switch p.framework {
	case "httpx":
		p.httpxTests(w, name)
	case "aiohttp":
		p.aiohttpTests(w, name)
	default:
		p.requestsTests(w, name)
	}

	return w.Block()
}

func (p py) requestsTests(w *writer, name string) {
	w.blank()
	w.open("def test_%s_sends_request():", name)
	w.line("response = mock.Mock(status_code=200, text='{\"ok\": true}', content=b'{\"ok\": true}')")
	w.line(`response.json.return_value = {"ok": True}`)
	w.blank()
	w.open(`with mock.patch("requests.request", return_value=response) as request:`)
	w.line("%s()", name)
	w.depth--
	w.blank()
	w.line("request.assert_called_once()")
	w.line("assert request.call_args.args[0] == %s", cQuote.quote(p.method()))
	w.line("assert request.call_args.args[1].startswith(%s)", cQuote.quote(p.baseURL()))
	w.depth = 0

	if !p.checked() {
		return
	}

	w.blank()
	w.blank()
	w.open("def test_%s_raises_on_server_error():", name)
	w.line(`response = mock.Mock(status_code=500, text="boom")`)
	w.line(`response.raise_for_status.side_effect = requests.HTTPError("500 Server Error")`)
	w.blank()
	w.open(`with mock.patch("requests.request", return_value=response), pytest.raises(Exception):`)
	w.line("%s()", name)
	w.depth = 0
}

func (p py) httpxTests(w *writer, name string) {
	call := func(handler string) string {
		if p.async {
			return fmt.Sprintf("asyncio.run(%s(transport=httpx.MockTransport(%s)))", name, handler)
		}

		return fmt.Sprintf("%s(transport=httpx.MockTransport(%s))", name, handler)
	}

	w.blank()
	w.open("def test_%s_sends_request():", name)
	w.line("sent = []")
	w.blank()
	w.open("def handler(request: httpx.Request) -> httpx.Response:")
	w.line("sent.append(request)")
	w.line(`return httpx.Response(200, json={"ok": True})`)
	w.depth--
	w.blank()
	w.line("%s", call("handler"))
	w.blank()
	w.line("assert len(sent) == 1")
	w.line("assert sent[0].method == %s", cQuote.quote(p.method()))
	w.line("assert str(sent[0].url).startswith(%s)", cQuote.quote(p.baseURL()))
	w.depth = 0

	if !p.checked() {
		return
	}

	w.blank()
	w.blank()
	w.open("def test_%s_raises_on_server_error():", name)
	w.open("def handler(request: httpx.Request) -> httpx.Response:")
	w.line(`return httpx.Response(500, text="boom")`)
	w.depth--
	w.blank()
	w.open("with pytest.raises(Exception):")
	w.line("%s", call("handler"))
	w.depth = 0
}

func (p py) aiohttpTests(w *writer, name string) {
	pattern := fmt.Sprintf(`re.compile("^" + re.escape(%s))`, cQuote.quote(p.baseURL()))

	w.blank()
	w.open("def test_%s_sends_request():", name)
	w.open("with aioresponses() as mocked:")
	w.line(`mocked.add(%s, method=%s, payload={"ok": True})`, pattern, cQuote.quote(p.method()))
	w.line("asyncio.run(%s())", name)
	w.depth--
	w.blank()
	w.line("assert len(mocked.requests) == 1")
	w.depth = 0

	if !p.checked() {
		return
	}

	w.blank()
	w.blank()
	w.open("def test_%s_raises_on_server_error():", name)
	w.open("with aioresponses() as mocked:")
	w.line(`mocked.add(%s, method=%s, status=500, body="boom", repeat=True)`, pattern, cQuote.quote(p.method()))
	w.blank()
	w.open("with pytest.raises(Exception):")
	w.line("asyncio.run(%s())", name)
	w.depth = 0
}
