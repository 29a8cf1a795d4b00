package codegen

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// jsIdentifier matches keys that can be written unquoted in an object type.
var jsIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// templateQuote quotes the literal parts of a JavaScript template literal.
//
//nolint:gochecknoglobals // Effectively a constant
var templateQuote = quoting{
	escapes: map[rune]string{
		'`':  "\\`",
		'\\': `\\`,
		'$':  `\$`,
	},
}

// js generates JavaScript and TypeScript for fetch and axios.
type js struct {
	*gen
	typed bool // TypeScript
	axios bool // axios rather than fetch
}

// emitJavaScript is the emitter for javascript and typescript.
func emitJavaScript(g *gen) program {
	j := js{
		gen:   g,
		typed: g.target.Language == "typescript",
		axios: g.target.Framework == "axios",
	}

	p := program{
		Preamble: j.preamble(),
		Imports:  j.imports(),
		Types:    join(j.types(), j.errorTypes()),
		Helpers:  j.retryHelper(),
		Main:     j.function(),
		Entry:    j.entry(),
	}

	if g.options.IncludeTests {
		p.Tests = j.tests()
		p.TestFileName = j.fileBase() + ".test" + g.target.Extension
	}

	return p
}

func (j js) preamble() Block {
	w := newWriter("//")
	j.intro(w)

	if !j.axios && j.insecure {
		w.note("fetch cannot skip certificate verification per request,")
		w.note("run with NODE_TLS_REJECT_UNAUTHORIZED=0 to disable it for the process")
	}

	return w.Block()
}

func (j js) imports() Block {
	w := newWriter("//")

	var fs []string
	if j.body().File != "" || j.hasFileFields() {
		fs = append(fs, "readFile")
	}

	if j.output() != "" {
		fs = append(fs, "writeFile")
	}

	if len(fs) != 0 {
		w.line(`import { %s } from "node:fs/promises";`, strings.Join(fs, ", "))
	}

	if j.axios && j.insecure {
		w.line(`import https from "node:https";`)
	}

	if j.axios {
		w.line(`import axios from "axios";`)
	}

	return w.Block()
}

// hasFileFields reports whether a multipart body uploads any files.
func (j js) hasFileFields() bool {
	if j.body().Kind != spec.BodyMultipart {
		return false
	}

	for _, field := range j.body().Fields {
		if field.File {
			return true
		}
	}

	return false
}

// env renders a reference to an environment variable.
func (j js) env(name string) string {
	return "process.env." + name
}

// value renders a value as a string expression: a plain string literal if it is
// literal, the variable itself if it is a single environment variable and a
// template literal if it mixes the two.
func (j js) value(value envvars.Value) string {
	if value.IsLiteral() {
		return cQuote.quote(value.Text())
	}

	if len(value) == 1 {
		if j.typed {
			return j.env(value[0].Env) + ` ?? ""`
		}

		return j.env(value[0].Env)
	}

	var b strings.Builder

	b.WriteByte('`')

	for _, part := range value {
		if part.IsEnv() {
			b.WriteString("${" + j.env(part.Env) + "}")
			continue
		}

		b.WriteString(templateQuote.quote(part.Text))
	}

	b.WriteByte('`')

	return b.String()
}

// types declares the interfaces inferred from the JSON body.
func (j js) types() Block {
	if !j.typed || j.model == nil {
		return nil
	}

	w := newWriter("//")
	w.note("Shape of the request body")

	for i, s := range j.model.Structs {
		if i > 0 {
			w.blank()
		}

		w.open("interface %s {", s.Name)

		for _, field := range s.Fields {
			key := field.Key
			if !jsIdentifier.MatchString(key) {
				key = cQuote.quote(key)
			}

			optional := ""
			if field.Optional {
				optional = "?"
			}

			w.line("%s%s: %s;", key, optional, tsType(field.Type))
		}

		w.close("}")
	}

	if j.model.Root.Kind == shape.List {
		w.blank()
		w.line("type %s = %s;", rootType, tsType(j.model.Root))
	}

	return w.Block()
}

// tsType returns the TypeScript type for an inferred type.
func tsType(t shape.Type) string {
	var name string

	switch t.Kind {
	case shape.Boolean:
		name = "boolean"
	case shape.Integer, shape.Float:
		name = "number"
	case shape.Text:
		name = "string"
	case shape.Struct:
		name = t.Name
	case shape.List:
		elem := tsType(*t.Elem)
		if strings.Contains(elem, " ") {
			elem = "(" + elem + ")"
		}

		name = elem + "[]"
	case shape.Unknown:
		return "null"
	default:
		return "unknown"
	}

	if t.Nullable {
		return name + " | null"
	}

	return name
}

// errorTypes declares the error classes used by comprehensive error handling.
func (j js) errorTypes() Block {
	if !j.comprehensive() {
		return nil
	}

	w := newWriter("//")
	w.note("Raised for responses with a 4xx or 5xx status")
	w.open("class HttpError extends Error {")

	if j.typed {
		w.open("constructor(")
		w.line("readonly status: number,")
		w.line("readonly body: unknown,")
		w.close(") {")
		w.depth++
		w.line("super(`Request failed with status ${status}`);")
		w.line("this.name = new.target.name;")
		w.close("}")
	} else {
		w.open("constructor(status, body) {")
		w.line("super(`Request failed with status ${status}`);")
		w.line("this.name = new.target.name;")
		w.line("this.status = status;")
		w.line("this.body = body;")
		w.close("}")
	}

	w.close("}")
	w.blank()
	w.line("class ClientError extends HttpError {}")
	w.blank()
	w.line("class ServerError extends HttpError {}")

	return w.Block()
}

// retryHelper declares the function that retries failed requests.
func (j js) retryHelper() Block {
	if !j.retry() {
		return nil
	}

	w := newWriter("//")
	w.note("Retries network errors, 429 and 5xx responses with exponential backoff")

	if j.typed {
		w.open("async function withRetry<T extends { status: number }>(send: () => Promise<T>, attempts = %d): Promise<T> {", j.attempts())
	} else {
		w.open("async function withRetry(send, attempts = %d) {", j.attempts())
	}

	w.open("for (let attempt = 1; ; attempt++) {")
	w.open("try {")
	w.line("const response = await send();")
	w.open("if ((response.status < 500 && response.status !== 429) || attempt >= attempts) {")
	w.line("return response;")
	w.close("}")
	w.close("} catch (error) {")
	w.depth++
	w.open("if (attempt >= attempts) {")
	w.line("throw error;")
	w.close("}")
	w.close("}")
	w.blank()
	w.line("const delay = 2 ** (attempt - 1) * 500;")

	if j.logging() {
		w.line("console.warn(`Attempt ${attempt} failed, retrying in ${delay}ms`);")
	}

	w.line("await new Promise((resolve) => setTimeout(resolve, delay));")
	w.close("}")
	w.close("}")

	return w.Block()
}

// function builds the request function.
func (j js) function() Block {
	open := newWriter("//")
	open.note("Sends the request and returns the response body")

	export := ""
	if j.options.IncludeTests {
		export = "export "
	}

	open.line("%sasync function %s() {", export, j.camel())

	f := function{
		Open:    open.Block(),
		Build:   j.build(),
		Execute: j.execute(),
		Check:   j.check(),
		Handle:  j.handle(),
		Close:   Block{{Text: "}"}},
		Guard:   j.guard(),
	}

	return f.Block()
}

// build declares the url, body and request options.
func (j js) build() Block {
	w := newWriter("//")

	w.line("const url = %s;", j.value(j.url()))
	j.writeBody(w)

	if j.axios {
		w.open("const config = {")
		w.line("url,")
		w.line("method: %s,", cQuote.quote(j.method()))
	} else {
		w.open("const options = {")
		w.line("method: %s,", cQuote.quote(j.method()))
	}

	j.writeHeaders(w)

	if j.hasBody() {
		switch {
		case j.axios:
			w.line("data: body,")
		case j.json != nil:
			w.line("body: JSON.stringify(body),")
		default:
			w.line("body,")
		}
	}

	if j.axios && j.basicAuth() {
		w.open("auth: {")
		w.line("username: %s,", cQuote.quote(j.username()))
		w.line("password: %s,", j.value(j.password()))
		w.close("},")
	}

	if j.timeout > 0 {
		if j.axios {
			w.line("timeout: %d,", j.timeout)
		} else {
			w.line("signal: AbortSignal.timeout(%d),", j.timeout)
		}
	}

	if j.axios {
		if j.insecure {
			w.line("httpsAgent: new https.Agent({ rejectUnauthorized: false }),")
		}

		if j.output() != "" {
			w.line(`responseType: "arraybuffer",`)
		}

		w.line("validateStatus: () => true,")
	}

	w.close("};")

	if j.logging() {
		w.blank()
		w.line("console.log(%s);", cQuote.quote("Sending "+j.method()+" request to "+j.baseURL()))
	}

	return w.Block()
}

// writeBody declares the request body, if there is one.
func (j js) writeBody(w *writer) {
	body := j.body()

	switch {
	case body.Kind == spec.BodyNone:
		return
	case body.File != "":
		j.fileNote(w)
		w.line("const body = await readFile(%s);", cQuote.quote(body.File))
	case j.json != nil:
		declaration := "const body = "
		if j.model != nil {
			declaration = "const body: " + rootType + " = "
		}

		w.add(jsLiteral.block(j.json, declaration, ";"))
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		w.open("const body = new URLSearchParams([")

		for _, field := range body.Fields {
			w.line("[%s, %s],", cQuote.quote(field.Name), cQuote.quote(field.Value))
		}

		w.close("]);")
	case body.Kind == spec.BodyMultipart:
		w.line("const body = new FormData();")

		for _, field := range body.Fields {
			if !field.File {
				w.line("body.append(%s, %s);", cQuote.quote(field.Name), cQuote.quote(field.Value))
				continue
			}

			blob := fmt.Sprintf("new Blob([await readFile(%s)])", cQuote.quote(field.Value))
			if field.ContentType != "" {
				blob = fmt.Sprintf("new Blob([await readFile(%s)], { type: %s })", cQuote.quote(field.Value), cQuote.quote(field.ContentType))
			}

			w.line("body.append(%s, %s, %s);", cQuote.quote(field.Name), blob, cQuote.quote(path.Base(field.Value)))
		}
	default:
		w.line("const body = %s;", cQuote.quote(j.payload()))
	}

	w.blank()
}

// writeHeaders writes the headers property of the request options.
func (j js) writeHeaders(w *writer) {
	headers := j.headers
	basic := !j.axios && j.basicAuth()

	if len(headers) == 0 && !basic {
		return
	}

	w.open("headers: {")

	for _, h := range headers {
		w.line("%s: %s,", cQuote.quote(h.Name), j.value(h.Value))
	}

	if basic {
		credentials := append(envvars.Literal(j.username()+":"), j.password()...)
		w.line(`"Authorization": "Basic " + btoa(%s),`, j.value(credentials))
	}

	w.close("},")
}

// execute sends the request.
func (j js) execute() Block {
	send := "fetch(url, options)"
	if j.axios {
		send = "axios.request(config)"
	}

	if j.retry() {
		return Block{{Text: fmt.Sprintf("const response = await withRetry(() => %s);", send)}}
	}

	return Block{{Text: fmt.Sprintf("const response = await %s;", send)}}
}

// check checks the response status.
func (j js) check() Block {
	if !j.checked() {
		return nil
	}

	w := newWriter("//")

	ok := "!response.ok"
	if j.axios {
		ok = "response.status < 200 || response.status >= 300"
	}

	w.open("if (%s) {", ok)

	if j.comprehensive() {
		if j.axios {
			w.line("const body = response.data;")
		} else {
			w.line("const body = await response.text();")
		}

		w.open("if (response.status >= 500) {")
		w.line("throw new ServerError(response.status, body);")
		w.close("}")
		w.line("throw new ClientError(response.status, body);")
	} else {
		w.line("throw new Error(`Request failed with status ${response.status}`);")
	}

	w.close("}")

	return w.Block()
}

// handle reads the response body.
func (j js) handle() Block {
	w := newWriter("//")

	if j.logging() {
		w.line("console.log(`Received ${response.status} ${response.statusText}`);")
	}

	switch {
	case j.output() != "" && j.axios:
		w.line("await writeFile(%s, response.data);", cQuote.quote(j.output()))
		w.line("return response.data;")
	case j.output() != "":
		w.line("const data = Buffer.from(await response.arrayBuffer());")
		w.line("await writeFile(%s, data);", cQuote.quote(j.output()))
		w.line("return data;")
	case j.axios:
		w.line("return response.data;")
	case j.expectJSON:
		w.line("return await response.json();")
	default:
		w.line("return await response.text();")
	}

	return w.Block()
}

// guard returns the error handling wrapper for the function body.
func (j js) guard() func(Block) Block {
	if !j.checked() {
		return nil
	}

	return func(body Block) Block {
		w := newWriter("//")
		w.open("try {")
		w.add(body)
		w.close("} catch (error) {")
		w.depth++

		if j.comprehensive() {
			timeout := `error.name === "TimeoutError"`
			if j.axios {
				timeout = `axios.isAxiosError(error) && error.code === "ECONNABORTED"`
			} else if j.typed {
				timeout = `error instanceof Error && error.name === "TimeoutError"`
			}

			w.open("if (error instanceof ClientError) {")
			w.line("console.error(`Client error ${error.status}:`, error.body);")
			w.close("} else if (error instanceof ServerError) {")
			w.depth++
			w.line("console.error(`Server error ${error.status}:`, error.body);")
			w.close("} else if (%s) {", timeout)
			w.depth++
			w.line(`console.error("Request timed out");`)
			w.close("} else {")
			w.depth++
			w.line(`console.error("Network error:", error);`)
			w.close("}")
		} else {
			w.line(`console.error("Request failed:", error);`)
		}

		w.line("throw error;")
		w.close("}")

		return w.Block()
	}
}

// entry calls the request function when the module is run.
func (j js) entry() Block {
	if j.options.IncludeTests {
		return nil
	}

	return Block{{Text: j.camel() + "().then((data) => console.log(data));"}}
}

// tests generates a node:test test file, mocking the HTTP client.
func (j js) tests() Block {
	w := newWriter("//")
	name := j.camel()

	w.line(`import { test } from "node:test";`)
	w.line(`import assert from "node:assert/strict";`)

	if j.axios {
		w.line(`import axios from "axios";`)
	}

	w.line(`import { %s } from "./%s.js";`, name, j.fileBase())
	w.blank()

	target, mocked := "globalThis", "fetch"
	ok := `async () => new Response(JSON.stringify({ ok: true }), { status: 200 })`
	fail := `async () => new Response("boom", { status: 500 })`

	if j.axios {
		target, mocked = "axios", "request"
		ok = `async () => ({ status: 200, statusText: "OK", data: { ok: true } })`
		fail = `async () => ({ status: 500, statusText: "Internal Server Error", data: "boom" })`
	}

	w.open("test(%s, async (t) => {", cQuote.quote(name+" sends a "+j.method()+" request"))
	w.line("const mocked = t.mock.method(%s, %s, %s);", target, cQuote.quote(mocked), ok)
	w.blank()
	w.line("await %s();", name)
	w.blank()
	w.line("assert.equal(mocked.mock.callCount(), 1);")

	if j.axios {
		w.line("const [config] = mocked.mock.calls[0].arguments;")
		w.line("assert.equal(config.method, %s);", cQuote.quote(j.method()))
		w.line("assert.ok(String(config.url).startsWith(%s));", cQuote.quote(j.baseURL()))
	} else {
		w.line("const [url, options] = mocked.mock.calls[0].arguments;")
		w.line("assert.equal(options?.method, %s);", cQuote.quote(j.method()))
		w.line("assert.ok(String(url).startsWith(%s));", cQuote.quote(j.baseURL()))
	}

	w.close("});")

	if j.checked() {
		w.blank()
		w.open("test(%s, async (t) => {", cQuote.quote(name+" rejects on a server error"))
		w.line("t.mock.method(%s, %s, %s);", target, cQuote.quote(mocked), fail)
		w.blank()
		w.line("await assert.rejects(%s());", name)
		w.close("});")
	}

	return w.Block()
}
