package codegen

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// swift generates Swift using URLSession and async/await.
type swift struct {
	*gen
}

// emitSwift is the emitter for swift.
func emitSwift(g *gen) program {
	s := swift{gen: g}

	return program{
		FileName: "main.swift",
		Preamble: s.preamble(),
		Imports:  s.imports(),
		Types:    s.types(),
		Helpers:  s.helpers(),
		Main:     s.function(),
		Entry:    s.entry(),
	}
}

func (s swift) preamble() Block {
	w := newWriter("//")
	s.intro(w)

	return w.Block()
}

func (s swift) imports() Block {
	w := newWriter("//")
	w.line("import Foundation")
	w.line("#if canImport(FoundationNetworking)")
	w.line("import FoundationNetworking")
	w.line("#endif")

	return w.Block()
}

// env renders a reference to an environment variable.
func (s swift) env(name string) string {
	return fmt.Sprintf(`(ProcessInfo.processInfo.environment[%s] ?? "")`, swiftQuote.quote(name))
}

// value renders a value as a string expression.
func (s swift) value(value envvars.Value) string {
	return concat(value, swiftQuote, s.env, " + ")
}

// types declares the error types and the delegate that skips TLS verification.
func (s swift) types() Block {
	w := newWriter("//")

	switch {
	case s.comprehensive():
		w.line("/// The ways a request can fail.")
		w.open("enum RequestError: Error {")
		w.line("case client(status: Int, body: String)")
		w.line("case server(status: Int, body: String)")
		w.close("}")
	case s.checked():
		w.line("/// Thrown for responses with a 4xx or 5xx status.")
		w.open("struct HTTPError: Error, CustomStringConvertible {")
		w.line("let status: Int")
		w.line("let body: String")
		w.blank()
		w.line(`var description: String { "Request failed with status \(status): \(body)" }`)
		w.close("}")
	}

	if s.insecure {
		w.blank()
		w.note("Trusts every certificate, never use this in production")
		w.open("final class InsecureDelegate: NSObject, URLSessionDelegate {")
		w.line("func urlSession(")
		w.cont("_ session: URLSession,")
		w.cont("didReceive challenge: URLAuthenticationChallenge")
		w.open(") async -> (URLSession.AuthChallengeDisposition, URLCredential?) {")
		w.open("guard let trust = challenge.protectionSpace.serverTrust else {")
		w.line("return (.performDefaultHandling, nil)")
		w.close("}")
		w.line("return (.useCredential, URLCredential(trust: trust))")
		w.close("}")
		w.close("}")
	}

	return w.Block()
}

// helpers declares the logging and retry helpers.
func (s swift) helpers() Block {
	w := newWriter("//")

	if s.logging() {
		w.line("/// Writes a log line to standard error.")
		w.open("func logLine(_ message: String) {")
		w.line(`FileHandle.standardError.write(Data((message + "\n").utf8))`)
		w.close("}")
	}

	if !s.retry() {
		return w.Block()
	}

	if s.logging() {
		w.blank()
	}

	w.line("let attempts = %d", s.attempts())
	w.blank()
	w.line("/// Sends with retries on network errors, 429 and 5xx responses, backing off exponentially.")
	w.open("func withRetry(_ send: () async throws -> (Data, URLResponse)) async throws -> (Data, URLResponse) {")
	w.line("var attempt = 1")
	w.open("while true {")
	w.open("do {")
	w.line("let (data, response) = try await send()")
	w.line("let status = (response as? HTTPURLResponse)?.statusCode ?? 0")
	w.open("if (status != 429 && status < 500) || attempt >= attempts {")
	w.line("return (data, response)")
	w.close("}")
	w.close("} catch {")
	w.depth++
	w.open("if attempt >= attempts {")
	w.line("throw error")
	w.close("}")
	w.close("}")
	w.blank()

	if s.logging() {
		w.line(`logLine("Attempt \(attempt) failed, retrying")`)
	}

	w.line("try await Task.sleep(nanoseconds: UInt64(500_000_000) << UInt64(attempt - 1))")
	w.line("attempt += 1")
	w.close("}")
	w.close("}")

	return w.Block()
}

// function builds the request function.
func (s swift) function() Block {
	f := function{
		Open:    Block{{Text: fmt.Sprintf("func %s() async throws -> String {", s.camel())}},
		Build:   s.build(),
		Execute: s.execute(),
		Check:   s.check(),
		Handle:  s.handle(),
		Close:   Block{{Text: "}"}},
	}

	return f.Block()
}

// build declares the request.
func (s swift) build() Block {
	w := newWriter("//")
	w.line("var request = URLRequest(url: URL(string: %s)!)", s.value(s.url()))
	w.line("request.httpMethod = %s", swiftQuote.quote(s.method()))

	if s.timeout > 0 {
		w.line("request.timeoutInterval = %s", s.seconds())
	}

	seen := make(map[string]bool, len(s.headers))
	for _, h := range s.headers {
		set := "setValue"
		if seen[strings.ToLower(h.Name)] {
			set = "addValue"
		}

		seen[strings.ToLower(h.Name)] = true
		w.line("request.%s(%s, forHTTPHeaderField: %s)", set, s.value(h.Value), swiftQuote.quote(h.Name))
	}

	if s.basicAuth() {
		credentials := concat(append(envvars.Literal(s.username()+":"), s.password()...), swiftQuote, s.env, " + ")
		w.line("let credentials = Data((%s).utf8).base64EncodedString()", credentials)
		w.line(`request.setValue("Basic " + credentials, forHTTPHeaderField: "Authorization")`)
	}

	body := s.body()

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		s.fileNote(w)
		w.line("request.httpBody = try Data(contentsOf: URL(fileURLWithPath: %s))", swiftQuote.quote(body.File))
	case body.Kind == spec.BodyMultipart:
		s.multipart(w, body)
	default:
		w.line("request.httpBody = Data(%s.utf8)", swiftQuote.quote(s.payload()))
	}

	if s.logging() {
		w.blank()
		w.line("logLine(%s)", swiftQuote.quote("Sending "+s.method()+" request to "+s.baseURL()))
	}

	return w.Block()
}

// multipart builds a multipart/form-data body by hand, URLSession has no
// support for them.
func (s swift) multipart(w *writer, body spec.Body) {
	w.blank()
	w.line(`let boundary = "uncurl-" + UUID().uuidString`)
	w.line(`request.setValue("multipart/form-data; boundary=" + boundary, forHTTPHeaderField: "Content-Type")`)
	w.line("var form = Data()")

	for _, field := range body.Fields {
		if !field.File {
			part := fmt.Sprintf("\r\nContent-Disposition: form-data; name=%q\r\n\r\n%s\r\n", field.Name, field.Value)
			w.line(`form.append(Data(("--" + boundary + %s).utf8))`, swiftQuote.quote(part))

			continue
		}

		contentType := field.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		part := fmt.Sprintf("\r\nContent-Disposition: form-data; name=%q; filename=%q\r\nContent-Type: %s\r\n\r\n",
			field.Name, baseName(field.Value), contentType)
		w.line(`form.append(Data(("--" + boundary + %s).utf8))`, swiftQuote.quote(part))
		w.line("form.append(try Data(contentsOf: URL(fileURLWithPath: %s)))", swiftQuote.quote(field.Value))
		w.line(`form.append(Data("\r\n".utf8))`)
	}

	w.line(`form.append(Data(("--" + boundary + "--\r\n").utf8))`)
	w.line("request.httpBody = form")
}

// execute sends the request.
func (s swift) execute() Block {
	w := newWriter("//")

	session := "URLSession.shared"
	if s.insecure {
		session = "URLSession(configuration: .default, delegate: InsecureDelegate(), delegateQueue: nil)"
	}

	w.line("let session = %s", session)

	if s.retry() {
		w.line("let (data, response) = try await withRetry { try await session.data(for: request) }")
	} else {
		w.line("let (data, response) = try await session.data(for: request)")
	}

	w.line("let status = (response as? HTTPURLResponse)?.statusCode ?? 0")
	w.line("let text = String(decoding: data, as: UTF8.self)")

	if s.logging() {
		w.line(`logLine("Received \(status)")`)
	}

	return w.Block()
}

// check checks the response status.
func (s swift) check() Block {
	if !s.checked() {
		return nil
	}

	w := newWriter("//")

	if s.comprehensive() {
		w.open("if status >= 500 {")
		w.line("throw RequestError.server(status: status, body: text)")
		w.close("}")
		w.open("if status >= 400 {")
		w.line("throw RequestError.client(status: status, body: text)")
		w.close("}")

		return w.Block()
	}

	w.open("if status >= 400 {")
	w.line("throw HTTPError(status: status, body: text)")
	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (s swift) handle() Block {
	w := newWriter("//")

	if out := s.output(); out != "" {
		w.line("try data.write(to: URL(fileURLWithPath: %s))", swiftQuote.quote(out))
	}

	w.line("return text")

	return w.Block()
}

// report returns the statement reporting an error message.
func (s swift) report(message string) string {
	if s.logging() {
		return "logLine(" + message + ")"
	}

	return `FileHandle.standardError.write(Data((` + message + ` + "\n").utf8))`
}

// entry runs the request at the top level, reporting failures.
func (s swift) entry() Block {
	w := newWriter("//")

	if !s.checked() {
		w.line("print(try await %s())", s.camel())
		return w.Block()
	}

	w.open("do {")
	w.line("print(try await %s())", s.camel())

	catch := func(pattern, message string) {
		w.close("} catch %s{", pattern)
		w.depth++
		w.line("%s", s.report(message))
		w.line("exit(1)")
	}

	if s.comprehensive() {
		catch("RequestError.client(let status, let body) ", `"Client error \(status): \(body)"`)
		catch("RequestError.server(let status, let body) ", `"Server error \(status): \(body)"`)
		catch("let error as URLError where error.code == .timedOut ", `"Request timed out"`)
		catch("", `"Network error: \(error)"`)
	} else {
		catch("", `"Request failed: \(error)"`)
	}

	w.close("}")

	return w.Block()
}
