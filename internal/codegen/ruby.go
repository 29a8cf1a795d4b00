package codegen

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// rubyMethods maps request methods to their Net::HTTP request classes.
//
//nolint:gochecknoglobals // Effectively a constant
var rubyMethods = map[string]string{
	"GET":     "Get",
	"POST":    "Post",
	"PUT":     "Put",
	"PATCH":   "Patch",
	"DELETE":  "Delete",
	"HEAD":    "Head",
	"OPTIONS": "Options",
	"TRACE":   "Trace",
}

// ruby generates Ruby using Net::HTTP.
type ruby struct {
	*gen
}

// emitRuby is the emitter for ruby.
func emitRuby(g *gen) program {
	r := ruby{gen: g}

	return program{
		FileName: g.snake() + ".rb",
		Preamble: r.preamble(),
		Imports:  r.imports(),
		Types:    r.errorTypes(),
		Helpers:  r.helpers(),
		Main:     r.function(),
		Entry:    r.entry(),
	}
}

func (r ruby) preamble() Block {
	w := newWriter("#")
	r.intro(w)

	if r.request.Flags.FollowRedirects {
		w.note("Net::HTTP does not follow redirects, check response[\"location\"] to follow them")
	}

	return w.Block()
}

func (r ruby) imports() Block {
	w := newWriter("#")

	if r.json != nil && r.body().File == "" {
		w.line(`require "json"`)
	}

	if r.logging() {
		w.line(`require "logger"`)
	}

	w.line(`require "net/http"`)

	if r.insecure {
		w.line(`require "openssl"`)
	}

	w.line(`require "uri"`)

	return w.Block()
}

// env renders a reference to an environment variable.
func (r ruby) env(name string) string {
	return fmt.Sprintf("ENV.fetch(%s)", rubyQuote.quote(name))
}

// value renders a value as a string expression.
func (r ruby) value(value envvars.Value) string {
	return concat(value, rubyQuote, r.env, " + ")
}

// errorTypes declares the errors used by comprehensive error handling, and
// the logger.
func (r ruby) errorTypes() Block {
	w := newWriter("#")

	if r.logging() {
		w.line("LOGGER = Logger.new($stderr)")
	}

	if !r.comprehensive() {
		return w.Block()
	}

	if r.logging() {
		w.blank()
	}

	w.note("Raised for responses with a 4xx or 5xx status.")
	w.open("class HttpError < StandardError")
	w.line("attr_reader :status, :body")
	w.blank()
	w.open("def initialize(status, body)")
	w.line(`super("Request failed with status #{status}")`)
	w.line("@status = status")
	w.line("@body = body")
	w.close("end")
	w.close("end")
	w.blank()
	w.note("Raised for responses with a 4xx status.")
	w.line("class ClientError < HttpError; end")
	w.blank()
	w.note("Raised for responses with a 5xx status.")
	w.line("class ServerError < HttpError; end")

	return w.Block()
}

// helpers declares the retry helper.
func (r ruby) helpers() Block {
	if !r.retry() {
		return nil
	}

	w := newWriter("#")
	w.note("Retries network errors, 429 and 5xx responses with exponential backoff.")
	w.open("def with_retry(attempts = %d)", r.attempts())
	w.line("attempt = 1")
	w.open("loop do")
	w.open("begin")
	w.line("response = yield")
	w.line("status = response.code.to_i")
	w.line("return response if (status != 429 && status < 500) || attempt >= attempts")
	w.close("rescue SocketError, Timeout::Error, SystemCallError, IOError")
	w.depth++
	w.line("raise if attempt >= attempts")
	w.close("end")
	w.blank()

	if r.logging() {
		w.line(`LOGGER.warn("Attempt #{attempt} failed, retrying")`)
	}

	w.line("sleep(0.5 * (2**(attempt - 1)))")
	w.line("attempt += 1")
	w.close("end")
	w.close("end")

	return w.Block()
}

// function builds the request method.
func (r ruby) function() Block {
	f := function{
		Open:    Block{{Text: "def " + r.snake()}},
		Build:   r.build(),
		Execute: r.execute(),
		Check:   r.check(),
		Handle:  r.handle(),
		Close:   Block{{Text: "end"}},
	}

	if r.checked() {
		f.Guard = r.guard
	}

	return f.Block()
}

// requestClass returns the expression creating the request for uri.
func (r ruby) requestClass() string {
	if class, ok := rubyMethods[r.method()]; ok {
		return fmt.Sprintf("Net::HTTP::%s.new(uri)", class)
	}

	return fmt.Sprintf("Net::HTTPGenericRequest.new(%s, %t, true, uri)", rubyQuote.quote(r.method()), r.hasBody())
}

// build declares the uri and the request.
func (r ruby) build() Block {
	w := newWriter("#")
	w.line("uri = URI(%s)", r.value(r.url()))
	w.line("request = %s", r.requestClass())

	for _, h := range r.headers {
		if r.body().Kind == spec.BodyForm && len(r.body().Fields) != 0 && strings.EqualFold(h.Name, "Content-Type") {
			// set_form_data sets it
			continue
		}

		w.line("request[%s] = %s", rubyQuote.quote(h.Name), r.value(h.Value))
	}

	if r.basicAuth() {
		w.line("request.basic_auth(%s, %s)", rubyQuote.quote(r.username()), r.value(r.password()))
	}

	body := r.body()

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		r.fileNote(w)
		w.line("request.body = File.binread(%s)", rubyQuote.quote(body.File))
	case r.json != nil:
		w.blank()
		w.add(rubyLiteral.block(r.json, "payload = ", ""))
		w.line("request.body = JSON.generate(payload)")
	case body.Kind == spec.BodyMultipart:
		w.open("request.set_form(")
		w.open("[")

		for _, field := range body.Fields {
			if !field.File {
				w.line("[%s, %s],", rubyQuote.quote(field.Name), rubyQuote.quote(field.Value))
				continue
			}

			options := fmt.Sprintf("{filename: %s}", rubyQuote.quote(baseName(field.Value)))
			if field.ContentType != "" {
				options = fmt.Sprintf("{filename: %s, content_type: %s}",
					rubyQuote.quote(baseName(field.Value)), rubyQuote.quote(field.ContentType))
			}

			w.line("[%s, File.open(%s), %s],", rubyQuote.quote(field.Name), rubyQuote.quote(field.Value), options)
		}

		w.close("],")
		w.line(`"multipart/form-data"`)
		w.close(")")
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		w.open("request.set_form_data(")

		for _, field := range body.Fields {
			w.line("%s => %s,", rubyQuote.quote(field.Name), rubyQuote.quote(field.Value))
		}

		w.close(")")
	default:
		w.line("request.body = %s", rubyQuote.quote(r.payload()))
	}

	if r.logging() {
		w.blank()
		w.line("LOGGER.info(%s)", rubyQuote.quote("Sending "+r.method()+" request to "+r.baseURL()))
	}

	return w.Block()
}

// startOptions returns the keyword arguments for Net::HTTP.start.
func (r ruby) startOptions() string {
	options := []string{`use_ssl: uri.scheme == "https"`}

	if r.insecure {
		options = append(options, "verify_mode: OpenSSL::SSL::VERIFY_NONE")
	}

	if r.timeout > 0 {
		options = append(options, "open_timeout: "+r.seconds(), "read_timeout: "+r.seconds())
	}

	return strings.Join(options, ", ")
}

// execute sends the request.
func (r ruby) execute() Block {
	w := newWriter("#")

	start := fmt.Sprintf("Net::HTTP.start(uri.hostname, uri.port, %s) do |http|", r.startOptions())

	if r.retry() {
		w.open("response = with_retry do")
		w.open("%s", start)
		w.line("http.request(request)")
		w.close("end")
		w.close("end")
	} else {
		w.open("response = %s", start)
		w.line("http.request(request)")
		w.close("end")
	}

	if r.logging() {
		w.line(`LOGGER.info("Received #{response.code}")`)
	}

	return w.Block()
}

// check checks the response status.
func (r ruby) check() Block {
	if !r.checked() {
		return nil
	}

	w := newWriter("#")
	w.line("status = response.code.to_i")

	if r.comprehensive() {
		w.line("raise ServerError.new(status, response.body) if status >= 500")
		w.line("raise ClientError.new(status, response.body) if status >= 400")
	} else {
		w.line(`raise "Request failed with status #{status}: #{response.body}" if status >= 400`)
	}

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (r ruby) handle() Block {
	w := newWriter("#")

	if out := r.output(); out != "" {
		w.line("File.binwrite(%s, response.body)", rubyQuote.quote(out))
	}

	if r.expectJSON {
		w.line("JSON.parse(response.body)")
	} else {
		w.line("response.body")
	}

	return w.Block()
}

// report returns the statement reporting an error message.
func (r ruby) report(message string) string {
	if r.logging() {
		return "LOGGER.error(" + message + ")"
	}

	return "warn " + message
}

// guard adds rescue clauses to the method body, reporting and reraising
// failures.
func (r ruby) guard(body Block) Block {
	w := newWriter("#")
	w.add(body)
	w.depth = -1

	rescue := func(exceptions, message string) {
		w.line("rescue %s => e", exceptions)
		w.depth++
		w.line("%s", r.report(message))
		w.line("raise")
		w.depth--
	}

	if r.comprehensive() {
		rescue("ClientError", `"Client error #{e.status}: #{e.body}"`)
		rescue("ServerError", `"Server error #{e.status}: #{e.body}"`)
		rescue("Net::OpenTimeout, Net::ReadTimeout", `"Request timed out"`)
		rescue("SocketError, SystemCallError, IOError", `"Network error: #{e.message}"`)
	} else {
		rescue("StandardError", `"Request failed: #{e.message}"`)
	}

	return w.Block()
}

// entry runs the request when the file is executed as a script.
func (r ruby) entry() Block {
	w := newWriter("#")
	w.line("puts %s if __FILE__ == $PROGRAM_NAME", r.snake())

	return w.Block()
}
