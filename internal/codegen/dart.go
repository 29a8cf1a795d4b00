package codegen

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// dart generates Dart using package:http.
type dart struct {
	*gen
}

// emitDart is the emitter for dart.
func emitDart(g *gen) program {
	d := dart{gen: g}

	return program{
		FileName: "main.dart",
		Preamble: d.preamble(),
		Imports:  d.imports(),
		Types:    d.types(),
		Helpers:  d.helpers(),
		Main:     d.function(),
		Entry:    d.entry(),
	}
}

func (d dart) preamble() Block {
	w := newWriter("//")
	d.intro(w)

	return w.Block()
}

func (d dart) imports() Block {
	w := newWriter("//")

	if d.timeout > 0 && d.comprehensive() {
		w.line("import 'dart:async';")
	}

	if d.basicAuth() || (d.json != nil && d.body().File == "") {
		w.line("import 'dart:convert';")
	}

	w.line("import 'dart:io';")
	w.blank()
	w.line("import 'package:http/http.dart' as http;")

	if d.insecure {
		w.line("import 'package:http/io_client.dart';")
	}

	return w.Block()
}

// env renders a reference to an environment variable.
func (d dart) env(name string) string {
	return fmt.Sprintf("(Platform.environment[%s] ?? '')", dartQuote.quote(name))
}

// value renders a value as a string expression.
func (d dart) value(value envvars.Value) string {
	return concat(value, dartQuote, d.env, " + ")
}

// types declares the exceptions used by error handling.
func (d dart) types() Block {
	if !d.checked() {
		return nil
	}

	w := newWriter("//")
	w.line("/// Thrown for responses with a 4xx or 5xx status.")
	w.open("class StatusException implements Exception {")
	w.line("final int status;")
	w.line("final String body;")
	w.blank()
	w.line("StatusException(this.status, this.body);")
	w.blank()
	w.line("@override")
	w.line("String toString() => 'Request failed with status $status: $body';")
	w.close("}")

	if d.comprehensive() {
		w.blank()
		w.line("/// Thrown for responses with a 4xx status.")
		w.open("class ClientStatusException extends StatusException {")
		w.line("ClientStatusException(super.status, super.body);")
		w.close("}")
		w.blank()
		w.line("/// Thrown for responses with a 5xx status.")
		w.open("class ServerStatusException extends StatusException {")
		w.line("ServerStatusException(super.status, super.body);")
		w.close("}")
	}

	return w.Block()
}

// helpers declares the logging and retry helpers.
func (d dart) helpers() Block {
	w := newWriter("//")

	if d.logging() {
		w.line("/// Writes a timestamped log line to standard error.")
		w.line("void logLine(String message) => stderr.writeln('${DateTime.now().toIso8601String()} $message');")
	}

	if !d.retry() {
		return w.Block()
	}

	if d.logging() {
		w.blank()
	}

	w.line("const attempts = %d;", d.attempts())
	w.blank()
	w.line("/// Sends with retries on network errors, 429 and 5xx responses, backing off exponentially.")
	w.open("Future<http.Response> withRetry(Future<http.Response> Function() send) async {")
	w.open("for (var attempt = 1; ; attempt++) {")
	w.open("try {")
	w.line("final response = await send();")
	w.line("final status = response.statusCode;")
	w.open("if ((status != 429 && status < 500) || attempt >= attempts) {")
	w.line("return response;")
	w.close("}")
	w.close("} on Exception {")
	w.depth++
	w.open("if (attempt >= attempts) {")
	w.line("rethrow;")
	w.close("}")
	w.close("}")
	w.blank()

	if d.logging() {
		w.line("logLine('Attempt $attempt failed, retrying');")
	}

	w.line("await Future<void>.delayed(Duration(milliseconds: 500 << (attempt - 1)));")
	w.close("}")
	w.close("}")

	return w.Block()
}

// function builds the request function.
//
// The client is closed in a finally, the body sits inside the try.
func (d dart) function() Block {
	open := newWriter("//")
	open.open("Future<String> %s() async {", d.camel())
	open.line("final url = Uri.parse(%s);", d.value(d.url()))

	if d.insecure {
		open.line("final client = IOClient(HttpClient()..badCertificateCallback = (cert, host, port) => true);")
	} else {
		open.line("final client = http.Client();")
	}

	open.line("try {")

	f := function{
		Open:    open.Block(),
		Build:   d.build(),
		Execute: d.execute(),
		Check:   d.check(),
		Handle:  d.handle(),
		Close: Block{
			{Text: "} finally {", Depth: 1},
			{Text: "client.close();", Depth: 2},
			{Text: "}", Depth: 1},
			{Text: "}"},
		},
	}

	return f.Block()
}

// setHeaders writes the header assignments, joining repeated headers.
func (d dart) setHeaders(w *writer) {
	var (
		order  []string
		values = make(map[string][]string)
	)

	for _, h := range d.headers {
		key := strings.ToLower(h.Name)
		if _, ok := values[key]; !ok {
			order = append(order, h.Name)
		}

		values[key] = append(values[key], d.value(h.Value))
	}

	for _, name := range order {
		w.line("request.headers[%s] = %s;", dartQuote.quote(name), strings.Join(values[strings.ToLower(name)], " + ', ' + "))
	}

	if d.basicAuth() {
		credentials := concat(append(envvars.Literal(d.username()+":"), d.password()...), dartQuote, d.env, " + ")
		w.line("request.headers['Authorization'] = 'Basic ${base64Encode(utf8.encode(%s))}';", credentials)
	}
}

// build declares the local send function, which builds a fresh request every
// time it's called.
func (d dart) build() Block {
	w := newWriter("//")
	body := d.body()

	if d.json != nil && body.File == "" {
		w.add(dartLiteral.block(d.json, "final payload = ", ";"))
		w.blank()
	}

	w.open("Future<http.Response> send() async {")

	if body.Kind == spec.BodyMultipart {
		w.line("final request = http.MultipartRequest(%s, url);", dartQuote.quote(d.method()))
	} else {
		w.line("final request = http.Request(%s, url);", dartQuote.quote(d.method()))
	}

	d.setHeaders(w)

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		d.fileNote(w)
		w.line("request.bodyBytes = await File(%s).readAsBytes();", dartQuote.quote(body.File))
	case d.json != nil:
		w.line("request.body = jsonEncode(payload);")
	case body.Kind == spec.BodyMultipart:
		for _, field := range body.Fields {
			if !field.File {
				w.line("request.fields[%s] = %s;", dartQuote.quote(field.Name), dartQuote.quote(field.Value))
				continue
			}

			w.line("request.files.add(await http.MultipartFile.fromPath(%s, %s));", dartQuote.quote(field.Name), dartQuote.quote(field.Value))
		}
	case body.Kind == spec.BodyForm && len(body.Fields) != 0 && !duplicateNames(body.Fields):
		w.open("request.bodyFields = {")

		for _, field := range body.Fields {
			w.line("%s: %s,", dartQuote.quote(field.Name), dartQuote.quote(field.Value))
		}

		w.close("};")
	default:
		w.line("request.body = %s;", dartQuote.quote(d.payload()))
	}

	send := "client.send(request)"
	if d.timeout > 0 {
		send += fmt.Sprintf(".timeout(const Duration(milliseconds: %d))", d.timeout)
	}

	w.line("return http.Response.fromStream(await %s);", send)
	w.close("}")

	if d.logging() {
		w.blank()
		w.line("logLine(%s);", dartQuote.quote("Sending "+d.method()+" request to "+d.baseURL()))
	}

	return w.Block()
}

// execute sends the request.
func (d dart) execute() Block {
	w := newWriter("//")

	if d.retry() {
		w.line("final response = await withRetry(send);")
	} else {
		w.line("final response = await send();")
	}

	w.line("final status = response.statusCode;")
	w.line("final text = response.body;")

	if d.logging() {
		w.line("logLine('Received $status');")
	}

	return w.Block()
}

// check checks the response status.
func (d dart) check() Block {
	if !d.checked() {
		return nil
	}

	w := newWriter("//")

	if d.comprehensive() {
		w.open("if (status >= 500) {")
		w.line("throw ServerStatusException(status, text);")
		w.close("}")
		w.open("if (status >= 400) {")
		w.line("throw ClientStatusException(status, text);")
		w.close("}")

		return w.Block()
	}

	w.open("if (status >= 400) {")
	w.line("throw StatusException(status, text);")
	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (d dart) handle() Block {
	w := newWriter("//")

	if out := d.output(); out != "" {
		w.line("await File(%s).writeAsBytes(response.bodyBytes);", dartQuote.quote(out))
	}

	w.line("return text;")

	return w.Block()
}

// report returns the statement reporting an error message.
func (d dart) report(message string) string {
	if d.logging() {
		return "logLine(" + message + ");"
	}

	return "stderr.writeln(" + message + ");"
}

// entry declares main, reporting failures.
func (d dart) entry() Block {
	w := newWriter("//")
	w.open("Future<void> main() async {")

	if !d.checked() {
		w.line("print(await %s());", d.camel())
		w.close("}")

		return w.Block()
	}

	w.open("try {")
	w.line("print(await %s());", d.camel())

	catch := func(clause, message string) {
		w.close("} %s {", clause)
		w.depth++
		w.line("%s", d.report(message))
		w.line("exitCode = 1;")
	}

	if d.comprehensive() {
		catch("on ClientStatusException catch (e)", "'Client error ${e.status}: ${e.body}'")
		catch("on ServerStatusException catch (e)", "'Server error ${e.status}: ${e.body}'")

		if d.timeout > 0 {
			catch("on TimeoutException", "'Request timed out'")
		}

		catch("catch (e)", "'Network error: $e'")
	} else {
		catch("catch (e)", "'Request failed: $e'")
	}

	w.close("}")
	w.close("}")

	return w.Block()
}
