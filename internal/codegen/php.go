package codegen

import (
	"fmt"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// php generates PHP using the curl extension or Guzzle.
type php struct {
	*gen
	guzzle bool
}

// emitPHP is the emitter for php.
func emitPHP(g *gen) program {
	p := php{gen: g, guzzle: g.target.Framework == "guzzle"}

	return program{
		Preamble: p.preamble(),
		Imports:  p.imports(),
		Types:    p.errorTypes(),
		Helpers:  p.helpers(),
		Main:     p.function(),
		Entry:    p.entry(),
	}
}

func (p php) preamble() Block {
	w := newWriter("//")
	w.line("<?php")
	w.blank()
	p.intro(w)
	w.blank()
	w.line("declare(strict_types=1);")

	return w.Block()
}

func (p php) imports() Block {
	if !p.guzzle {
		return nil
	}

	w := newWriter("//")
	w.line("require __DIR__ . '/vendor/autoload.php';")
	w.blank()
	w.line("use GuzzleHttp\\Client;")

	if p.comprehensive() {
		w.line("use GuzzleHttp\\Exception\\ConnectException;")
	}

	if p.checked() {
		w.line("use GuzzleHttp\\Exception\\GuzzleException;")
	}

	if p.retry() {
		w.line("use GuzzleHttp\\HandlerStack;")
		w.line("use GuzzleHttp\\Middleware;")
		w.line("use Psr\\Http\\Message\\RequestInterface;")
		w.line("use Psr\\Http\\Message\\ResponseInterface;")
	}

	return w.Block()
}

// env renders a reference to an environment variable.
func (p php) env(name string) string {
	return fmt.Sprintf("getenv(%s)", phpQuote.quote(name))
}

// value renders a value as a string expression.
func (p php) value(value envvars.Value) string {
	return concat(value, phpQuote, p.env, " . ")
}

// hasEmptyObject reports whether node contains an empty object, which a PHP
// array can't tell apart from an empty list.
func hasEmptyObject(node *shape.Node) bool {
	switch node.Kind {
	case shape.Object:
		if len(node.Fields) == 0 {
			return true
		}

		for _, field := range node.Fields {
			if hasEmptyObject(field.Value) {
				return true
			}
		}
	case shape.Array:
		for _, item := range node.Items {
			if hasEmptyObject(item) {
				return true
			}
		}
	default:
	}

	return false
}

// jsonArray reports whether the JSON body is written as a PHP array.
func (p php) jsonArray() bool {
	return p.json != nil && !hasEmptyObject(p.json)
}

// errorTypes declares the exceptions used by comprehensive error handling.
func (p php) errorTypes() Block {
	if !p.comprehensive() {
		return nil
	}

	w := newWriter("//")
	w.line("/** Thrown for responses with a 4xx or 5xx status. */")
	w.line("class HttpException extends RuntimeException")
	w.open("{")
	w.line("public function __construct(public readonly int $status, public readonly string $body)")
	w.open("{")
	w.line(`parent::__construct("Request failed with status {$status}");`)
	w.close("}")
	w.close("}")
	w.blank()
	w.line("/** Thrown for responses with a 4xx status. */")
	w.line("class ClientException extends HttpException")
	w.line("{")
	w.line("}")
	w.blank()
	w.line("/** Thrown for responses with a 5xx status. */")
	w.line("class ServerException extends HttpException")
	w.line("{")
	w.line("}")

	return w.Block()
}

// helpers declares the retry helper for the curl extension, Guzzle retries
// with middleware instead.
func (p php) helpers() Block {
	if !p.retry() || p.guzzle {
		return nil
	}

	w := newWriter("//")
	w.line("/**")
	w.line(" * Sends with retries on network errors, 429 and 5xx responses, backing off exponentially.")
	w.line(" *")
	w.line(" * @return array{int, string, ?string} The status, body and error")
	w.line(" */")
	w.line("function withRetry(callable $send, int $attempts = %d): array", p.attempts())
	w.open("{")
	w.line("for ($attempt = 1; ; $attempt++) {")
	w.depth++
	w.line("[$status, $body, $error] = $send();")
	w.line("$retryable = $error !== null || $status === 429 || $status >= 500;")
	w.line("if (!$retryable || $attempt >= $attempts) {")
	w.depth++
	w.line("return [$status, $body, $error];")
	w.close("}")
	w.blank()

	if p.logging() {
		w.line(`error_log("Attempt {$attempt} failed, retrying");`)
	}

	w.line("usleep(500000 * 2 ** ($attempt - 1));")
	w.close("}")
	w.close("}")

	return w.Block()
}

// function builds the request function.
func (p php) function() Block {
	f := function{
		Open:    Block{{Text: fmt.Sprintf("function %s(): string", p.camel())}, {Text: "{"}},
		Build:   p.build(),
		Execute: p.execute(),
		Check:   p.check(),
		Handle:  p.handle(),
		Close:   Block{{Text: "}"}},
	}

	if p.checked() {
		f.Guard = p.guard
	}

	return f.Block()
}

// build declares the url, headers and body.
func (p php) build() Block {
	w := newWriter("//")
	w.line("$url = %s;", p.value(p.url()))

	if p.guzzle {
		return w.Block()
	}

	if len(p.headers) != 0 {
		w.open("$headers = [")

		for _, h := range p.headers {
			w.line("%s,", concat(append(envvars.Literal(h.Name+": "), h.Value...), phpQuote, p.env, " . "))
		}

		w.close("];")
	}

	body := p.body()

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		p.fileNote(w)
		w.line("$payload = file_get_contents(%s);", phpQuote.quote(body.File))
	case p.jsonArray():
		w.add(phpLiteral.block(p.json, "$payload = ", ";"))
	case body.Kind == spec.BodyMultipart:
		w.open("$payload = [")

		for _, field := range body.Fields {
			if field.File {
				contentType := ""
				if field.ContentType != "" {
					contentType = ", " + phpQuote.quote(field.ContentType)
				}

				w.line("%s => new CURLFile(%s%s),", phpQuote.quote(field.Name), phpQuote.quote(field.Value), contentType)

				continue
			}

			w.line("%s => %s,", phpQuote.quote(field.Name), phpQuote.quote(field.Value))
		}

		w.close("];")
	default:
		w.line("$payload = %s;", phpQuote.quote(p.payload()))
	}

	w.blank()
	w.open("$options = [")
	w.line("CURLOPT_CUSTOMREQUEST => %s,", phpQuote.quote(p.method()))
	w.line("CURLOPT_RETURNTRANSFER => true,")

	if len(p.headers) != 0 {
		w.line("CURLOPT_HTTPHEADER => $headers,")
	}

	switch {
	case !p.hasBody():
	case p.jsonArray() && body.File == "":
		w.line("CURLOPT_POSTFIELDS => json_encode($payload, JSON_UNESCAPED_SLASHES | JSON_UNESCAPED_UNICODE | JSON_THROW_ON_ERROR),")
	default:
		w.line("CURLOPT_POSTFIELDS => $payload,")
	}

	if p.basicAuth() {
		w.line("CURLOPT_USERPWD => %s,", concat(append(envvars.Literal(p.username()+":"), p.password()...), phpQuote, p.env, " . "))
	}

	if p.timeout > 0 {
		w.line("CURLOPT_TIMEOUT_MS => %d,", p.timeout)
	}

	if p.request.Flags.FollowRedirects {
		w.line("CURLOPT_FOLLOWLOCATION => true,")
	}

	if p.request.Flags.Compressed {
		w.line("CURLOPT_ENCODING => '',")
	}

	if p.insecure {
		w.line("CURLOPT_SSL_VERIFYPEER => false,")
		w.line("CURLOPT_SSL_VERIFYHOST => 0,")
	}

	w.close("];")

	if p.logging() {
		w.blank()
		w.line("error_log(%s);", phpQuote.quote("Sending "+p.method()+" request to "+p.baseURL()))
	}

	return w.Block()
}

// execute sends the request, leaving the status, body and error in $status,
// $body and $error.
func (p php) execute() Block {
	if p.guzzle {
		return p.guzzleExecute()
	}

	w := newWriter("//")
	send := func() {
		w.line("$ch = curl_init($url);")
		w.line("curl_setopt_array($ch, $options);")
		w.line("$body = curl_exec($ch);")
		w.line("$error = $body === false ? curl_error($ch) : null;")
		w.line("$status = curl_getinfo($ch, CURLINFO_RESPONSE_CODE);")
		w.line("curl_close($ch);")
	}

	if p.retry() {
		w.line("$send = function () use ($url, $options): array {")
		w.depth++
		send()
		w.blank()
		w.line("return [$status, (string) $body, $error];")
		w.close("};")
		w.blank()
		w.line("[$status, $body, $error] = withRetry($send);")
	} else {
		send()
		w.line("$body = (string) $body;")
	}

	return w.Block()
}

// guzzleOptions writes the request options passed to Guzzle.
func (p php) guzzleOptions(w *writer) {
	w.open("$response = $client->request(%s, $url, [", phpQuote.quote(p.method()))

	if len(p.headers) != 0 {
		w.open("'headers' => [")

		for _, h := range p.headers {
			w.line("%s => %s,", phpQuote.quote(h.Name), p.value(h.Value))
		}

		w.close("],")
	}

	body := p.body()

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		w.line("'body' => fopen(%s, 'r'),", phpQuote.quote(body.File))
	case p.jsonArray():
		w.add(phpLiteral.block(p.json, "'json' => ", ","))
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		w.open("'form_params' => [")

		for _, field := range body.Fields {
			w.line("%s => %s,", phpQuote.quote(field.Name), phpQuote.quote(field.Value))
		}

		w.close("],")
	case body.Kind == spec.BodyMultipart:
		w.open("'multipart' => [")

		for _, field := range body.Fields {
			if !field.File {
				w.line("['name' => %s, 'contents' => %s],", phpQuote.quote(field.Name), phpQuote.quote(field.Value))
				continue
			}

			headers := ""
			if field.ContentType != "" {
				headers = fmt.Sprintf(", 'headers' => ['Content-Type' => %s]", phpQuote.quote(field.ContentType))
			}

			w.line("['name' => %s, 'contents' => fopen(%s, 'r'), 'filename' => %s%s],",
				phpQuote.quote(field.Name), phpQuote.quote(field.Value), phpQuote.quote(baseName(field.Value)), headers)
		}

		w.close("],")
	default:
		w.line("'body' => %s,", phpQuote.quote(p.payload()))
	}

	if p.basicAuth() {
		w.line("'auth' => [%s, %s],", phpQuote.quote(p.username()), p.value(p.password()))
	}

	w.close("]);")
}

func (p php) guzzleExecute() Block {
	w := newWriter("//")

	if p.retry() {
		w.line("$stack = HandlerStack::create();")
		w.line("$stack->push(Middleware::retry(")
		w.depth++
		w.line("function (int $retries, RequestInterface $request, ?ResponseInterface $response = null, ?Throwable $error = null): bool {")
		w.depth++
		w.line("if ($retries >= %d) {", p.attempts()-1)
		w.depth++
		w.line("return false;")
		w.close("}")
		w.blank()
		w.line("return $error !== null || ($response !== null && ($response->getStatusCode() === 429 || $response->getStatusCode() >= 500));")
		w.close("},")
		w.line("fn (int $retries): int => 500 * 2 ** ($retries - 1),")
		w.close("));")
		w.blank()
	}

	w.open("$client = new Client([")
	w.line("'http_errors' => false,")

	if p.retry() {
		w.line("'handler' => $stack,")
	}

	if p.timeout > 0 {
		w.line("'timeout' => %s,", p.seconds())
	}

	if p.insecure {
		w.line("'verify' => false,")
	}

	if p.request.Flags.Compressed {
		w.line("'decode_content' => true,")
	}

	w.close("]);")
	w.blank()

	if p.logging() {
		w.line("error_log(%s);", phpQuote.quote("Sending "+p.method()+" request to "+p.baseURL()))
		w.blank()
	}

	p.guzzleOptions(w)
	w.blank()
	w.line("$status = $response->getStatusCode();")
	w.line("$body = (string) $response->getBody();")

	return w.Block()
}

// check checks for a network error and the response status.
func (p php) check() Block {
	if !p.checked() {
		return nil
	}

	w := newWriter("//")

	if !p.guzzle {
		w.line("if ($error !== null) {")
		w.depth++
		w.line(`throw new RuntimeException("Network error: {$error}");`)
		w.close("}")
		w.blank()
	}

	if p.comprehensive() {
		w.line("if ($status >= 500) {")
		w.depth++
		w.line("throw new ServerException($status, $body);")
		w.close("}")
		w.line("if ($status >= 400) {")
		w.depth++
		w.line("throw new ClientException($status, $body);")
		w.close("}")

		return w.Block()
	}

	w.line("if ($status >= 400) {")
	w.depth++
	w.line(`throw new RuntimeException("Request failed with status {$status}: {$body}");`)
	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (p php) handle() Block {
	w := newWriter("//")

	if p.logging() {
		w.line(`error_log("Received {$status}");`)
	}

	if out := p.output(); out != "" {
		w.line("file_put_contents(%s, $body);", phpQuote.quote(out))
	}

	w.line("return $body;")

	return w.Block()
}

// report returns the statement reporting an error message.
func (p php) report(message string) string {
	if p.logging() {
		return "error_log(" + message + ");"
	}

	return "fwrite(STDERR, " + message + " . PHP_EOL);"
}

// guard wraps the function body in a try, reporting and rethrowing failures.
func (p php) guard(body Block) Block {
	w := newWriter("//")
	w.line("try {")
	w.add(body.Indent(1))

	catch := func(exception, message string) {
		w.line("} catch (%s $e) {", exception)
		w.depth++
		w.line("%s", p.report(message))
		w.line("throw $e;")
		w.depth--
	}

	network := "RuntimeException"
	if p.guzzle {
		network = "GuzzleException"
	}

	if p.comprehensive() {
		catch("ClientException", `"Client error {$e->status}: {$e->body}"`)
		catch("ServerException", `"Server error {$e->status}: {$e->body}"`)

		if p.guzzle {
			catch("ConnectException", `"Network error: {$e->getMessage()}"`)
		}
	}

	catch(network, `"Request failed: {$e->getMessage()}"`)
	w.line("}")

	return w.Block()
}

// entry calls the request function and prints the response.
func (p php) entry() Block {
	w := newWriter("//")
	w.line("echo %s(), PHP_EOL;", p.camel())

	return w.Block()
}
