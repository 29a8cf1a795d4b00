package codegen

import (
	"fmt"
	"slices"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/naming"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// rustKeywords are reserved words that need a raw identifier as a field name.
//
//nolint:gochecknoglobals // Effectively a constant
var rustKeywords = []string{
	"as", "async", "await", "break", "const", "continue", "crate", "dyn", "else", "enum",
	"extern", "false", "fn", "for", "if", "impl", "in", "let", "loop", "match", "mod",
	"move", "mut", "pub", "ref", "return", "static", "struct", "super", "trait", "true",
	"type", "unsafe", "use", "where", "while", "abstract", "become", "box", "do", "final",
	"macro", "override", "priv", "try", "typeof", "unsized", "virtual", "yield",
}

// rustMethods are the methods with a reqwest::Method constant.
//
//nolint:gochecknoglobals // Effectively a constant
var rustMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE", "CONNECT"}

// rustJSON is the syntax accepted by the serde_json::json! macro.
//
//nolint:gochecknoglobals // Effectively a constant
var rustJSON = dynamic{
	quoting:      rustQuote,
	objectOpen:   "{",
	objectClose:  "}",
	arrayOpen:    "[",
	arrayClose:   "]",
	separator:    ": ",
	null:         "null",
	trueLiteral:  "true",
	falseLiteral: "false",
}

// rust generates Rust using reqwest.
type rust struct {
	*gen
	async bool
}

// emitRust is the emitter for rust.
func emitRust(g *gen) program {
	r := rust{gen: g, async: g.options.Async}

	prog := program{
		FileName: "main.rs",
		Preamble: r.preamble(),
		Imports:  r.imports(),
		Types:    join(r.types(), r.errorTypes()),
		Helpers:  r.helpers(),
		Main:     r.function(),
		Entry:    r.entry(),
	}

	if r.async {
		prog.Deps = append(prog.Deps, "tokio")
	}

	if r.model != nil {
		prog.Deps = append(prog.Deps, "serde")
	}

	if r.logging() {
		prog.Deps = append(prog.Deps, "log", "env_logger")
	}

	return prog
}

func (r rust) preamble() Block {
	w := newWriter("//")
	r.intro(w)

	if r.async {
		w.note(`Cargo.toml: reqwest = { version = "0.12", features = ["json", "multipart"] }, tokio = { version = "1", features = ["full"] }`)
	} else {
		w.note(`Cargo.toml: reqwest = { version = "0.12", features = ["blocking", "json", "multipart"] }`)
	}

	return w.Block()
}

func (r rust) imports() Block {
	w := newWriter("//")

	if r.model != nil {
		w.line("use serde::Serialize;")
	}

	w.line("use std::env;")
	w.line("use std::error::Error;")

	if r.comprehensive() {
		w.line("use std::fmt;")
	}

	if r.timeout > 0 || r.retry() {
		w.line("use std::time::Duration;")
	}

	return w.Block()
}

// env renders a reference to an environment variable.
func (r rust) env(name string) string {
	return fmt.Sprintf("env::var(%s).unwrap_or_default()", rustQuote.quote(name))
}

// value renders a value as a string expression, a &str literal if it
// references nothing and a format! otherwise.
func (r rust) value(value envvars.Value) string {
	if value.IsLiteral() {
		return rustQuote.quote(value.Text())
	}

	var (
		format strings.Builder
		args   []string
	)

	for _, part := range value {
		if part.IsEnv() {
			format.WriteString("{}")
			args = append(args, r.env(part.Env))

			continue
		}

		escaped := strings.NewReplacer("{", "{{", "}", "}}").Replace(part.Text)
		format.WriteString(escaped)
	}

	return fmt.Sprintf("format!(%s, %s)", rustQuote.quote(format.String()), strings.Join(args, ", "))
}

// rustType returns the Rust type for an inferred type.
func rustType(t shape.Type, optional bool) string {
	var name string

	switch t.Kind {
	case shape.Boolean:
		name = "bool"
	case shape.Integer:
		name = "i64"
	case shape.Float:
		name = "f64"
	case shape.Text:
		name = "String"
	case shape.Struct:
		name = t.Name
	case shape.List:
		name = "Vec<" + rustType(*t.Elem, false) + ">"
	default:
		return "serde_json::Value"
	}

	if optional || t.Nullable {
		return "Option<" + name + ">"
	}

	return name
}

// rustField returns the field name for a JSON key.
func rustField(key string) string {
	name := naming.Identifier(naming.Snake(key), "field")
	if slices.Contains(rustKeywords, name) {
		return "r#" + name
	}

	return name
}

// types declares a serializable struct for every object in the JSON body.
func (r rust) types() Block {
	if r.model == nil {
		return nil
	}

	w := newWriter("//")

	for i, s := range r.model.Structs {
		if i != 0 {
			w.blank()
		}

		w.line("#[derive(Debug, Serialize)]")
		w.open("struct %s {", s.Name)

		names := fieldNames(s, "field", rustField)
		for j, field := range s.Fields {
			if strings.TrimPrefix(names[j], "r#") != field.Key {
				w.line("#[serde(rename = %s)]", rustQuote.quote(field.Key))
			}

			if field.Optional {
				w.line(`#[serde(skip_serializing_if = "Option::is_none")]`)
			}

			w.line("%s: %s,", names[j], rustType(field.Type, field.Optional))
		}

		w.close("}")
	}

	return w.Block()
}

// scalar renders a scalar node as a Rust value of kind.
func (r rust) scalar(node *shape.Node, kind shape.TypeKind) string {
	switch kind {
	case shape.Text:
		return rustQuote.quote(node.Value) + ".to_string()"
	case shape.Float:
		if node.IsInteger() {
			return node.Value + ".0"
		}

		return node.Value
	default:
		return jsonLiteral.scalar(node)
	}
}

// literal writes node as a Rust value of type t.
func (r rust) literal(w *writer, node *shape.Node, t shape.Type, optional bool, prefix, suffix string) {
	wrap := optional || t.Nullable

	if node.Kind == shape.Null {
		if t.Kind == shape.Any || t.Kind == shape.Unknown {
			w.line("%sserde_json::Value::Null%s", prefix, suffix)
			return
		}

		w.line("%sNone%s", prefix, suffix)

		return
	}

	some, end := "", ""
	if wrap && t.Kind != shape.Any && t.Kind != shape.Unknown {
		some, end = "Some(", ")"
	}

	switch {
	case t.Kind == shape.Struct && node.Kind == shape.Object:
		s := r.structOf(t)
		names := fieldNames(s, "field", rustField)

		w.open("%s%s%s {", prefix, some, t.Name)

		for i, field := range s.Fields {
			member := node.Get(field.Key)
			if member == nil {
				w.line("%s: None,", names[i])
				continue
			}

			r.literal(w, member, field.Type, field.Optional, names[i]+": ", ",")
		}

		w.close("}%s%s", end, suffix)
	case t.Kind == shape.List && node.Kind == shape.Array:
		if len(node.Items) == 0 {
			w.line("%s%sVec::new()%s%s", prefix, some, end, suffix)
			return
		}

		w.open("%s%svec![", prefix, some)

		for _, item := range node.Items {
			r.literal(w, item, *t.Elem, false, "", ",")
		}

		w.close("]%s%s", end, suffix)
	case t.Kind == shape.Any || t.Kind == shape.Unknown || node.Kind == shape.Object || node.Kind == shape.Array:
		w.add(rustJSON.block(node, prefix+"serde_json::json!(", ")"+suffix))
	default:
		w.line("%s%s%s%s%s", prefix, some, r.scalar(node, t.Kind), end, suffix)
	}
}

// errorTypes declares the error used by comprehensive error handling.
func (r rust) errorTypes() Block {
	if !r.comprehensive() {
		return nil
	}

	w := newWriter("//")
	w.line("/// The ways a request can fail.")
	w.line("#[derive(Debug)]")
	w.open("enum RequestError {")
	w.line("Client { status: u16, body: String },")
	w.line("Server { status: u16, body: String },")
	w.line("Timeout,")
	w.line("Network(reqwest::Error),")
	w.close("}")
	w.blank()
	w.open("impl fmt::Display for RequestError {")
	w.open("fn fmt(&self, f: &mut fmt::Formatter<'_>) -> fmt::Result {")
	w.open("match self {")
	w.line(`Self::Client { status, body } => write!(f, "client error {status}: {body}"),`)
	w.line(`Self::Server { status, body } => write!(f, "server error {status}: {body}"),`)
	w.line(`Self::Timeout => write!(f, "request timed out"),`)
	w.line(`Self::Network(err) => write!(f, "network error: {err}"),`)
	w.close("}")
	w.close("}")
	w.close("}")
	w.blank()
	w.line("impl Error for RequestError {}")
	w.blank()
	w.open("impl From<reqwest::Error> for RequestError {")
	w.open("fn from(err: reqwest::Error) -> Self {")
	w.open("if err.is_timeout() {")
	w.line("Self::Timeout")
	w.close("} else {")
	w.depth++
	w.line("Self::Network(err)")
	w.close("}")
	w.close("}")
	w.close("}")

	return w.Block()
}

// client returns the path of the reqwest client type.
func (r rust) client() string {
	if r.async {
		return "reqwest::Client"
	}

	return "reqwest::blocking::Client"
}

// await returns the suffix awaiting a future, empty when blocking.
func (r rust) await() string {
	if r.async {
		return ".await"
	}

	return ""
}

// helpers declares the retry helper.
func (r rust) helpers() Block {
	if !r.retry() {
		return nil
	}

	w := newWriter("//")
	w.line("const ATTEMPTS: u32 = %d;", r.attempts())
	w.blank()
	w.line("/// Sends with retries on network errors, 429 and 5xx responses, backing off exponentially.")

	if r.async {
		w.line("async fn with_retry<F, Fut>(mut send: F) -> reqwest::Result<reqwest::Response>")
		w.line("where")
		w.depth++
		w.line("F: FnMut() -> Fut,")
		w.line("Fut: std::future::Future<Output = reqwest::Result<reqwest::Response>>,")
		w.depth--
		w.open("{")
	} else {
		w.line("fn with_retry<F>(mut send: F) -> reqwest::Result<reqwest::blocking::Response>")
		w.line("where")
		w.depth++
		w.line("F: FnMut() -> reqwest::Result<reqwest::blocking::Response>,")
		w.depth--
		w.open("{")
	}

	w.line("let mut attempt = 1;")
	w.open("loop {")
	w.line("let result = send()%s;", r.await())
	w.open("let retryable = match &result {")
	w.line("Ok(response) => {")
	w.cont("response.status() == reqwest::StatusCode::TOO_MANY_REQUESTS || response.status().is_server_error()")
	w.line("}")
	w.line("Err(_) => true,")
	w.close("};")
	w.blank()
	w.open("if !retryable || attempt >= ATTEMPTS {")
	w.line("return result;")
	w.close("}")
	w.blank()

	if r.logging() {
		w.line(`log::warn!("attempt {attempt} failed, retrying");`)
	}

	if r.async {
		w.line("tokio::time::sleep(Duration::from_millis(500 << (attempt - 1))).await;")
	} else {
		w.line("std::thread::sleep(Duration::from_millis(500 << (attempt - 1)));")
	}

	w.line("attempt += 1;")
	w.close("}")
	w.close("}")

	return w.Block()
}

// function builds the request function.
func (r rust) function() Block {
	async := ""
	if r.async {
		async = "async "
	}

	f := function{
		Open:    Block{{Text: fmt.Sprintf("%sfn %s() -> Result<String, Box<dyn Error>> {", async, r.snake())}},
		Build:   r.build(),
		Execute: r.execute(),
		Check:   r.check(),
		Handle:  r.handle(),
		Close:   Block{{Text: "}"}},
	}

	return f.Block()
}

// build declares the url, the client and the body.
func (r rust) build() Block {
	w := newWriter("//")
	w.line("let url = %s;", r.value(r.url()))
	w.blank()
	w.line("let client = %s::builder()", r.client())
	w.depth++

	if r.timeout > 0 {
		w.line(".timeout(Duration::from_millis(%d))", r.timeout)
	}

	if r.insecure {
		w.line(".danger_accept_invalid_certs(true)")
	}

	w.line(".build()?;")
	w.depth--

	body := r.body()

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		w.blank()
		r.fileNote(w)
		w.line("let payload = std::fs::read(%s)?;", rustQuote.quote(body.File))
	case r.model != nil:
		w.blank()

		r.literal(w, r.json, r.model.Root, false, "let payload = ", ";")
	case r.json != nil:
		w.blank()
		w.add(rustJSON.block(r.json, "let payload = serde_json::json!(", ");"))
	case body.Kind == spec.BodyMultipart:
		w.blank()

		files := 0
		for _, field := range body.Fields {
			if field.File {
				files++
				w.line("let file%d = std::fs::read(%s)?;", files, rustQuote.quote(field.Value))
			}
		}
	default:
	}

	if r.logging() {
		w.blank()
		w.line("log::info!(%s);", rustQuote.quote(strings.NewReplacer("{", "{{", "}", "}}").Replace("sending "+r.method()+" request to "+r.baseURL())))
	}

	return w.Block()
}

// methodExpr returns the expression for the request method.
func (r rust) methodExpr() string {
	if slices.Contains(rustMethods, r.method()) {
		return "reqwest::Method::" + r.method()
	}

	return fmt.Sprintf("reqwest::Method::from_bytes(b%s).expect(\"valid method\")", rustQuote.quote(r.method()))
}

// requestChain writes the builder chain that sends the request, ending the
// last line with suffix.
func (r rust) requestChain(w *writer, suffix string) {
	w.line("client")
	w.depth++
	w.line(".request(%s, &url)", r.methodExpr())

	for _, h := range r.headers {
		w.line(".header(%s, %s)", rustQuote.quote(h.Name), r.value(h.Value))
	}

	if r.basicAuth() {
		w.line(".basic_auth(%s, Some(%s))", rustQuote.quote(r.username()), r.value(r.password()))
	}

	body := r.body()
	multipart := "reqwest::multipart"

	if !r.async {
		multipart = "reqwest::blocking::multipart"
	}

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		w.line(".body(payload.clone())")
	case r.json != nil:
		w.line(".json(&payload)")
	case body.Kind == spec.BodyMultipart:
		w.line(".multipart(")
		w.depth++
		w.line("%s::Form::new()", multipart)
		w.depth++

		files := 0
		for _, field := range body.Fields {
			if !field.File {
				w.line(".text(%s, %s)", rustQuote.quote(field.Name), rustQuote.quote(field.Value))
				continue
			}

			files++
			part := fmt.Sprintf("%s::Part::bytes(file%d.clone()).file_name(%s)", multipart, files, rustQuote.quote(baseName(field.Value)))

			if field.ContentType != "" {
				part += fmt.Sprintf(".mime_str(%s)?", rustQuote.quote(field.ContentType))
			}

			w.line(".part(%s, %s)", rustQuote.quote(field.Name), part)
		}

		w.depth -= 2
		w.line(")")
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		pairs := make([]string, 0, len(body.Fields))
		for _, field := range body.Fields {
			pairs = append(pairs, fmt.Sprintf("(%s, %s)", rustQuote.quote(field.Name), rustQuote.quote(field.Value)))
		}

		w.line(".form(&[%s])", strings.Join(pairs, ", "))
	default:
		w.line(".body(%s)", rustQuote.quote(r.payload()))
	}

	w.line(".send()%s", suffix)
	w.depth--
}

// execute sends the request and reads the response body.
func (r rust) execute() Block {
	w := newWriter("//")

	errorMap := ""
	if r.comprehensive() {
		errorMap = ".map_err(RequestError::from)"
	}

	multipartRetry := r.body().Kind == spec.BodyMultipart && slices.ContainsFunc(r.body().Fields, func(f spec.Field) bool {
		return f.File && f.ContentType != ""
	})

	if r.retry() && !multipartRetry {
		w.open("let response = with_retry(|| {")
		r.requestChain(w, "")
		w.close("})%s%s?;", r.await(), errorMap)
	} else {
		w.line("let response =")
		w.depth++
		r.requestChain(w, r.await()+errorMap+"?;")
		w.depth--
	}

	w.blank()
	if r.checked() || r.logging() {
		w.line("let status = response.status();")
	}

	w.line("let text = response.text()%s%s?;", r.await(), errorMap)

	if r.logging() {
		w.line(`log::info!("received {status}");`)
	}

	return w.Block()
}

// check checks the response status.
func (r rust) check() Block {
	if !r.checked() {
		return nil
	}

	w := newWriter("//")

	if r.comprehensive() {
		w.open("if status.is_server_error() {")
		w.line("return Err(RequestError::Server { status: status.as_u16(), body: text }.into());")
		w.close("}")
		w.open("if status.is_client_error() {")
		w.line("return Err(RequestError::Client { status: status.as_u16(), body: text }.into());")
		w.close("}")

		return w.Block()
	}

	w.open("if status.is_client_error() || status.is_server_error() {")
	w.line(`return Err(format!("request failed with status {status}: {text}").into());`)
	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (r rust) handle() Block {
	w := newWriter("//")

	if out := r.output(); out != "" {
		w.line("std::fs::write(%s, &text)?;", rustQuote.quote(out))
		w.blank()
	}

	w.line("Ok(text)")

	return w.Block()
}

// entry declares main.
func (r rust) entry() Block {
	w := newWriter("//")

	if r.async {
		w.line("#[tokio::main]")
		w.open("async fn main() {")
	} else {
		w.open("fn main() {")
	}

	if r.logging() {
		w.line("env_logger::init();")
		w.blank()
	}

	w.open("match %s()%s {", r.snake(), r.await())
	w.line(`Ok(body) => println!("{body}"),`)
	w.open("Err(err) => {")

	if r.logging() {
		w.line(`log::error!("{err}");`)
	} else {
		w.line(`eprintln!("{err}");`)
	}

	w.line("std::process::exit(1);")
	w.close("}")
	w.close("}")
	w.close("}")

	return w.Block()
}
