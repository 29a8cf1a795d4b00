package codegen

import (
	"fmt"
	"slices"

	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// kotlin generates Kotlin using OkHttp.
type kotlin struct {
	*gen
}

// emitKotlin is the emitter for kotlin.
func emitKotlin(g *gen) program {
	k := kotlin{gen: g}

	return program{
		FileName: "Main.kt",
		Preamble: k.preamble(),
		Imports:  k.imports(),
		Types:    k.types(),
		Helpers:  k.helpers(),
		Main:     k.function(),
		Entry:    k.entry(),
	}
}

func (k kotlin) preamble() Block {
	w := newWriter("//")
	k.intro(w)

	return w.Block()
}

// mediaType returns the expression for the body's media type, "null" if it
// has none.
func (k kotlin) mediaType(contentType string) string {
	if contentType == "" {
		return "null"
	}

	return kotlinQuote.quote(contentType) + ".toMediaType()"
}

// contentType returns the content type of the body.
func (k kotlin) contentType() string {
	contentType, ok := k.request.Headers.Get("Content-Type")
	if !ok {
		contentType = k.body().ContentType
	}

	return contentType
}

func (k kotlin) imports() Block {
	imports := []string{"okhttp3.OkHttpClient", "okhttp3.Request"}
	body := k.body()

	switch {
	case body.Kind == spec.BodyNone:
		if k.needsEmptyBody() {
			imports = append(imports, "okhttp3.RequestBody.Companion.toRequestBody")
		}
	case body.File != "":
		imports = append(imports, "java.io.File", "okhttp3.RequestBody.Companion.asRequestBody")
	case body.Kind == spec.BodyMultipart:
		imports = append(imports, "okhttp3.MultipartBody", "java.io.File", "okhttp3.RequestBody.Companion.asRequestBody")

		if slices.ContainsFunc(body.Fields, func(f spec.Field) bool { return f.File && f.ContentType != "" }) {
			imports = append(imports, "okhttp3.MediaType.Companion.toMediaType")
		}
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		imports = append(imports, "okhttp3.FormBody")
	default:
		imports = append(imports, "okhttp3.RequestBody.Companion.toRequestBody")
	}

	if body.Kind != spec.BodyNone && body.Kind != spec.BodyMultipart && !(body.Kind == spec.BodyForm && len(body.Fields) != 0) && k.contentType() != "" {
		imports = append(imports, "okhttp3.MediaType.Companion.toMediaType")
	}

	if k.basicAuth() {
		imports = append(imports, "okhttp3.Credentials")
	}

	if k.output() != "" {
		imports = append(imports, "java.io.File")
	}

	if k.timeout > 0 {
		imports = append(imports, "java.util.concurrent.TimeUnit")
	}

	if k.retry() {
		imports = append(imports, "okhttp3.Response", "java.io.IOException")
	}

	if k.checked() {
		imports = append(imports, "java.io.IOException")
	}

	if k.comprehensive() {
		imports = append(imports, "java.io.InterruptedIOException")
	}

	if k.logging() {
		imports = append(imports, "java.util.logging.Logger")
	}

	if k.insecure {
		imports = append(imports,
			"java.security.SecureRandom",
			"java.security.cert.X509Certificate",
			"javax.net.ssl.SSLContext",
			"javax.net.ssl.TrustManager",
			"javax.net.ssl.X509TrustManager",
		)
	}

	slices.Sort(imports)
	imports = slices.Compact(imports)

	w := newWriter("//")
	for _, imp := range imports {
		w.line("import %s", imp)
	}

	return w.Block()
}

// env renders a reference to an environment variable.
func (k kotlin) env(name string) string {
	return fmt.Sprintf("System.getenv(%s).orEmpty()", kotlinQuote.quote(name))
}

// value renders a value as a string expression.
func (k kotlin) value(value envvars.Value) string {
	return concat(value, kotlinQuote, k.env, " + ")
}

// types declares the logger, the trust manager and the exception types.
func (k kotlin) types() Block {
	w := newWriter("//")

	if k.logging() {
		w.line(`private val logger = Logger.getLogger("%s")`, k.camel())
	}

	if k.retry() {
		w.line("private const val ATTEMPTS = %d", k.attempts())
	}

	if k.insecure {
		if k.logging() || k.retry() {
			w.blank()
		}

		w.note("Trusts every certificate, never use this in production")
		w.open("private val trustAll = object : X509TrustManager {")
		w.line("override fun checkClientTrusted(chain: Array<X509Certificate>, authType: String) {}")
		w.line("override fun checkServerTrusted(chain: Array<X509Certificate>, authType: String) {}")
		w.line("override fun getAcceptedIssuers(): Array<X509Certificate> = arrayOf()")
		w.close("}")
		w.blank()
		w.line("private fun insecureContext(): SSLContext =")
		w.cont(`SSLContext.getInstance("TLS").apply { init(null, arrayOf<TrustManager>(trustAll), SecureRandom()) }`)
	}

	if k.comprehensive() {
		w.blank()
		w.line("/** Thrown for responses with a 4xx or 5xx status. */")
		w.line(`open class HttpException(val status: Int, val body: String) : Exception("Request failed with status $status")`)
		w.blank()
		w.line("/** Thrown for responses with a 4xx status. */")
		w.line("class ClientException(status: Int, body: String) : HttpException(status, body)")
		w.blank()
		w.line("/** Thrown for responses with a 5xx status. */")
		w.line("class ServerException(status: Int, body: String) : HttpException(status, body)")
	}

	return w.Block()
}

// helpers declares the retry helper.
func (k kotlin) helpers() Block {
	if !k.retry() {
		return nil
	}

	w := newWriter("//")
	w.line("/** Sends with retries on network errors, 429 and 5xx responses, backing off exponentially. */")
	w.open("fun withRetry(send: () -> Response): Response {")
	w.line("var attempt = 1")
	w.open("while (true) {")
	w.open("try {")
	w.line("val response = send()")
	w.open("if ((response.code != 429 && response.code < 500) || attempt >= ATTEMPTS) {")
	w.line("return response")
	w.close("}")
	w.line("response.close()")
	w.close("} catch (e: IOException) {")
	w.depth++
	w.open("if (attempt >= ATTEMPTS) {")
	w.line("throw e")
	w.close("}")
	w.close("}")
	w.blank()

	if k.logging() {
		w.line(`logger.warning("Attempt $attempt failed, retrying")`)
	}

	w.line("Thread.sleep(500L shl (attempt - 1))")
	w.line("attempt++")
	w.close("}")
	w.close("}")

	return w.Block()
}

// function builds the request function.
func (k kotlin) function() Block {
	f := function{
		Open:    Block{{Text: fmt.Sprintf("fun %s(): String {", k.camel())}},
		Build:   k.build(),
		Execute: k.execute(),
		Check:   k.check(),
		Handle:  k.handle(),
		Close:   Block{{Text: "}"}},
	}

	if k.checked() {
		f.Guard = k.guard
	}

	return f.Block()
}

// needsEmptyBody reports whether OkHttp requires a body for a method sent
// without one.
func (k kotlin) needsEmptyBody() bool {
	switch k.method() {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

// build declares the url, the client, the body and the request.
func (k kotlin) build() Block {
	w := newWriter("//")
	w.line("val url = %s", k.value(k.url()))
	w.blank()
	w.line("val client = OkHttpClient.Builder()")
	w.depth += 2

	if k.timeout > 0 {
		w.line(".callTimeout(%d, TimeUnit.MILLISECONDS)", k.timeout)
	}

	if k.insecure {
		w.line(".sslSocketFactory(insecureContext().socketFactory, trustAll)")
		w.line(".hostnameVerifier { _, _ -> true }")
	}

	w.line(".build()")
	w.depth -= 2
	w.blank()

	body := k.body()

	switch {
	case body.Kind == spec.BodyNone:
		if k.needsEmptyBody() {
			w.line("val body = ByteArray(0).toRequestBody()")
		} else {
			w.line("val body = null")
		}
	case body.File != "":
		k.fileNote(w)
		w.line("val body = File(%s).asRequestBody(%s)", kotlinQuote.quote(body.File), k.mediaType(k.contentType()))
	case body.Kind == spec.BodyMultipart:
		w.line("val body = MultipartBody.Builder()")
		w.depth += 2
		w.line(".setType(MultipartBody.FORM)")

		for _, field := range body.Fields {
			if !field.File {
				w.line(".addFormDataPart(%s, %s)", kotlinQuote.quote(field.Name), kotlinQuote.quote(field.Value))
				continue
			}

			w.line(".addFormDataPart(%s, %s, File(%s).asRequestBody(%s))",
				kotlinQuote.quote(field.Name),
				kotlinQuote.quote(baseName(field.Value)),
				kotlinQuote.quote(field.Value),
				k.mediaType(field.ContentType),
			)
		}

		w.line(".build()")
		w.depth -= 2
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		w.line("val body = FormBody.Builder()")
		w.depth += 2

		for _, field := range body.Fields {
			w.line(".add(%s, %s)", kotlinQuote.quote(field.Name), kotlinQuote.quote(field.Value))
		}

		w.line(".build()")
		w.depth -= 2
	default:
		w.line("val body = %s.toRequestBody(%s)", kotlinQuote.quote(k.payload()), k.mediaType(k.contentType()))
	}

	w.blank()
	w.line("val request = Request.Builder()")
	w.depth += 2
	w.line(".url(url)")

	for _, h := range k.headers {
		w.line(".header(%s, %s)", kotlinQuote.quote(h.Name), k.value(h.Value))
	}

	if k.basicAuth() {
		w.line(`.header("Authorization", Credentials.basic(%s, %s))`, kotlinQuote.quote(k.username()), k.value(k.password()))
	}

	w.line(".method(%s, body)", kotlinQuote.quote(k.method()))
	w.line(".build()")
	w.depth -= 2

	if k.logging() {
		w.blank()
		w.line("logger.info(%s)", kotlinQuote.quote("Sending "+k.method()+" request to "+k.baseURL()))
	}

	return w.Block()
}

// execute sends the request, leaving its status and body in status and text.
func (k kotlin) execute() Block {
	w := newWriter("//")

	send := "client.newCall(request).execute()"
	if k.retry() {
		send = "withRetry { " + send + " }"
	}

	w.open("val (status, text) = %s.use { response ->", send)
	w.line("response.code to response.body?.string().orEmpty()")
	w.close("}")

	if k.logging() {
		w.line(`logger.info("Received $status")`)
	}

	return w.Block()
}

// check checks the response status.
func (k kotlin) check() Block {
	if !k.checked() {
		return nil
	}

	w := newWriter("//")

	if k.comprehensive() {
		w.open("if (status >= 500) {")
		w.line("throw ServerException(status, text)")
		w.close("}")
		w.open("if (status >= 400) {")
		w.line("throw ClientException(status, text)")
		w.close("}")

		return w.Block()
	}

	w.open("if (status >= 400) {")
	w.line(`throw IOException("Request failed with status $status: $text")`)
	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (k kotlin) handle() Block {
	w := newWriter("//")

	if out := k.output(); out != "" {
		w.line("File(%s).writeText(text)", kotlinQuote.quote(out))
	}

	w.line("return text")

	return w.Block()
}

// report returns the statement reporting an error message.
func (k kotlin) report(message string) string {
	if k.logging() {
		return "logger.severe(" + message + ")"
	}

	return "System.err.println(" + message + ")"
}

// guard wraps the function body in a try, reporting and rethrowing failures.
func (k kotlin) guard(body Block) Block {
	w := newWriter("//")
	w.open("try {")
	w.add(body)
	w.depth = 0

	catch := func(exception, message string) {
		w.open("} catch (e: %s) {", exception)
		w.line("%s", k.report(message))
		w.line("throw e")
		w.depth--
	}

	if k.comprehensive() {
		catch("ClientException", `"Client error ${e.status}: ${e.body}"`)
		catch("ServerException", `"Server error ${e.status}: ${e.body}"`)
		catch("InterruptedIOException", `"Request timed out"`)
		catch("IOException", `"Network error: ${e.message}"`)
	} else {
		catch("IOException", `"Request failed: ${e.message}"`)
	}

	w.line("}")

	return w.Block()
}

// entry declares main.
func (k kotlin) entry() Block {
	w := newWriter("//")
	w.open("fun main() {")
	w.line("println(%s())", k.camel())
	w.close("}")

	return w.Block()
}
