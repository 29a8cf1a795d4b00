package codegen

import (
	"fmt"
	"slices"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// javaRestricted are the headers java.net.http refuses to set.
//
//nolint:gochecknoglobals // Effectively a constant
var javaRestricted = []string{"connection", "content-length", "expect", "host", "upgrade"}

// java generates Java using java.net.http or OkHttp.
type java struct {
	*gen
	okhttp bool
	async  bool
}

// emitJava is the emitter for java.
func emitJava(g *gen) program {
	j := java{
		gen:    g,
		okhttp: g.target.Framework == "okhttp",
		async:  g.target.Framework == "httpclient" && g.options.Async,
	}

	return program{
		FileName: "Main.java",
		Preamble: j.preamble(),
		Imports:  j.imports(),
		Types:    j.types(),
		Helpers:  j.helpers().Indent(1),
		Main:     j.function().Indent(1),
		Entry:    j.entry(),
	}
}

func (j java) preamble() Block {
	w := newWriter("//")
	j.intro(w)

	if j.insecure && !j.okhttp {
		w.note("Run with -Djdk.internal.httpclient.disableHostnameVerification=true to skip hostname checks too")
	}

	return w.Block()
}

// multipart reports whether the body is multipart form data.
func (j java) multipart() bool {
	return j.body().Kind == spec.BodyMultipart && j.body().File == ""
}

func (j java) imports() Block {
	var imports []string

	if j.okhttp {
		imports = append(imports, "okhttp3.OkHttpClient", "okhttp3.Request", "okhttp3.Response")

		switch {
		case j.multipart():
			imports = append(imports, "okhttp3.MultipartBody", "okhttp3.RequestBody", "okhttp3.MediaType", "java.io.File")
		case j.body().Kind == spec.BodyForm && len(j.body().Fields) != 0 && j.body().File == "":
			imports = append(imports, "okhttp3.FormBody")
		case j.body().File != "":
			imports = append(imports, "okhttp3.RequestBody", "okhttp3.MediaType", "java.io.File")
		default:
			imports = append(imports, "okhttp3.RequestBody", "okhttp3.MediaType")
		}

		if j.basicAuth() {
			imports = append(imports, "okhttp3.Credentials")
		}
	} else {
		imports = append(imports,
			"java.net.URI",
			"java.net.http.HttpClient",
			"java.net.http.HttpRequest",
			"java.net.http.HttpResponse",
		)

		if j.basicAuth() {
			imports = append(imports, "java.util.Base64")
		}

		if j.basicAuth() || j.multipart() {
			imports = append(imports, "java.nio.charset.StandardCharsets")
		}

		if j.multipart() {
			imports = append(imports, "java.io.ByteArrayOutputStream", "java.io.IOException")
		}
	}

	if j.timeout > 0 {
		imports = append(imports, "java.time.Duration")
	}

	if j.body().File != "" || j.output() != "" || (j.multipart() && !j.okhttp) {
		imports = append(imports, "java.nio.file.Files", "java.nio.file.Path")
	}

	if j.async {
		imports = append(imports, "java.util.concurrent.CompletableFuture")

		if j.output() != "" {
			imports = append(imports, "java.io.IOException", "java.io.UncheckedIOException")
		}

		if j.retry() {
			imports = append(imports,
				"java.util.concurrent.Executor",
				"java.util.concurrent.TimeUnit",
				"java.util.function.Function",
				"java.util.function.Supplier",
			)
		}
	} else {
		if j.retry() {
			imports = append(imports, "java.util.concurrent.Callable")
		}

		if j.retry() || j.checked() {
			imports = append(imports, "java.io.IOException")
		}

		if j.comprehensive() {
			if j.okhttp {
				imports = append(imports, "java.io.InterruptedIOException")
			} else {
				imports = append(imports, "java.net.http.HttpTimeoutException")
			}
		}
	}

	if j.logging() {
		imports = append(imports, "java.util.logging.Logger")
	}

	if j.insecure {
		imports = append(imports,
			"java.security.GeneralSecurityException",
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
		w.line("import %s;", imp)
	}

	return w.Block()
}

// env renders a reference to an environment variable.
func (j java) env(name string) string {
	return fmt.Sprintf("System.getenv(%s)", cQuote.quote(name))
}

// value renders a value as a string expression.
func (j java) value(value envvars.Value) string {
	return concat(value, cQuote, j.env, " + ")
}

// types opens the class and declares its constants and exception types.
func (j java) types() Block {
	w := newWriter("//")
	w.open("public class Main {")

	if j.logging() {
		w.line("private static final Logger LOGGER = Logger.getLogger(Main.class.getName());")
	}

	if j.retry() {
		w.line("private static final int ATTEMPTS = %d;", j.attempts())
	}

	if j.insecure {
		if j.logging() || j.retry() {
			w.blank()
		}

		w.note("Trusts every certificate, never use this in production")
		w.open("private static final X509TrustManager TRUST_ALL = new X509TrustManager() {")
		w.line("@Override")
		w.open("public void checkClientTrusted(X509Certificate[] chain, String authType) {")
		w.close("}")
		w.blank()
		w.line("@Override")
		w.open("public void checkServerTrusted(X509Certificate[] chain, String authType) {")
		w.close("}")
		w.blank()
		w.line("@Override")
		w.open("public X509Certificate[] getAcceptedIssuers() {")
		w.line("return new X509Certificate[0];")
		w.close("}")
		w.close("};")
	}

	if j.comprehensive() {
		w.blank()
		w.line("/** Thrown for responses with a 4xx or 5xx status. */")
		w.open("static class HttpException extends RuntimeException {")
		w.line("final int status;")
		w.line("final String body;")
		w.blank()
		w.open("HttpException(int status, String body) {")
		w.line(`super("Request failed with status " + status);`)
		w.line("this.status = status;")
		w.line("this.body = body;")
		w.close("}")
		w.close("}")

		for _, kind := range []struct{ name, doc string }{
			{name: "ClientException", doc: "4xx"},
			{name: "ServerException", doc: "5xx"},
		} {
			w.blank()
			w.line("/** Thrown for responses with a %s status. */", kind.doc)
			w.open("static class %s extends HttpException {", kind.name)
			w.open("%s(int status, String body) {", kind.name)
			w.line("super(status, body);")
			w.close("}")
			w.close("}")
		}
	}

	return w.Block()
}

// responseType returns the type of the response object.
func (j java) responseType() string {
	if j.okhttp {
		return "Response"
	}

	return "HttpResponse<String>"
}

// helpers declares the retry, TLS and multipart helpers.
func (j java) helpers() Block {
	var blocks []Block

	if j.retry() && j.async {
		w := newWriter("//")
		w.line("/** Sends with retries on network errors, 429 and 5xx responses, backing off exponentially. */")
		w.line("static CompletableFuture<HttpResponse<String>> withRetry(")
		w.cont("Supplier<CompletableFuture<HttpResponse<String>>> send, int attempt) {")
		w.depth++
		w.open("return send.get().handle((response, error) -> {")
		w.line("boolean retryable = error != null || response.statusCode() == 429 || response.statusCode() >= 500;")
		w.open("if (!retryable || attempt >= ATTEMPTS) {")
		w.line("return error == null")
		w.cont("? CompletableFuture.completedFuture(response)")
		w.cont(": CompletableFuture.<HttpResponse<String>>failedFuture(error);")
		w.close("}")
		w.blank()

		if j.logging() {
			w.line(`LOGGER.warning("Attempt " + attempt + " failed, retrying");`)
		}

		w.line("Executor delay = CompletableFuture.delayedExecutor(500L << (attempt - 1), TimeUnit.MILLISECONDS);")
		w.line("return CompletableFuture.runAsync(() -> {}, delay).thenCompose(ignored -> withRetry(send, attempt + 1));")
		w.close("}).thenCompose(Function.identity());")
		w.depth = 0
		w.line("}")

		blocks = append(blocks, w.Block())
	}

	if j.retry() && !j.async {
		status := "response.statusCode()"
		if j.okhttp {
			status = "response.code()"
		}

		w := newWriter("//")
		w.line("/** Sends with retries on network errors, 429 and 5xx responses, backing off exponentially. */")
		w.open("static %s withRetry(Callable<%s> send) throws Exception {", j.responseType(), j.responseType())
		w.open("for (int attempt = 1; ; attempt++) {")
		w.open("try {")
		w.line("%s response = send.call();", j.responseType())
		w.line("int status = %s;", status)
		w.open("if ((status != 429 && status < 500) || attempt >= ATTEMPTS) {")
		w.line("return response;")
		w.close("}")

		if j.okhttp {
			w.line("response.close();")
		}

		w.close("} catch (IOException e) {")
		w.depth++
		w.open("if (attempt >= ATTEMPTS) {")
		w.line("throw e;")
		w.close("}")
		w.close("}")
		w.blank()

		if j.logging() {
			w.line(`LOGGER.warning("Attempt " + attempt + " failed, retrying");`)
		}

		w.line("Thread.sleep(500L << (attempt - 1));")
		w.close("}")
		w.close("}")

		blocks = append(blocks, w.Block())
	}

	if j.insecure {
		w := newWriter("//")
		w.open("static SSLContext insecureContext() throws GeneralSecurityException {")
		w.line(`SSLContext context = SSLContext.getInstance("TLS");`)
		w.line("context.init(null, new TrustManager[] {TRUST_ALL}, new SecureRandom());")
		w.line("return context;")
		w.close("}")

		blocks = append(blocks, w.Block())
	}

	if j.multipart() && !j.okhttp {
		w := newWriter("//")
		w.open("static void writeField(ByteArrayOutputStream out, String boundary, String name, String value) throws IOException {")
		w.line(`String part = "--" + boundary + "\r\nContent-Disposition: form-data; name=\"" + name + "\"\r\n\r\n" + value + "\r\n";`)
		w.line("out.write(part.getBytes(StandardCharsets.UTF_8));")
		w.close("}")
		w.blank()
		w.line("static void writeFile(ByteArrayOutputStream out, String boundary, String name, Path path, String contentType)")
		w.cont("throws IOException {")
		w.depth++
		w.line(`String part = "--" + boundary + "\r\nContent-Disposition: form-data; name=\"" + name + "\"; filename=\""`)
		w.cont(`+ path.getFileName() + "\"\r\nContent-Type: " + contentType + "\r\n\r\n";`)
		w.line("out.write(part.getBytes(StandardCharsets.UTF_8));")
		w.line("out.write(Files.readAllBytes(path));")
		w.line(`out.write("\r\n".getBytes(StandardCharsets.UTF_8));`)
		w.close("}")

		blocks = append(blocks, w.Block())
	}

	return join(blocks...)
}

// duration returns the timeout as a java.time.Duration expression.
func (j java) duration() string {
	if j.timeout%1000 == 0 {
		return fmt.Sprintf("Duration.ofSeconds(%d)", j.timeout/1000)
	}

	return fmt.Sprintf("Duration.ofMillis(%d)", j.timeout)
}

// function builds the request method.
func (j java) function() Block {
	returns := "String"
	if j.async {
		returns = "CompletableFuture<String>"
	}

	open := Block{{Text: fmt.Sprintf("public static %s %s() throws Exception {", returns, j.camel())}}
	closing := Block{{Text: "}"}}

	if j.async {
		out := slices.Clone(open)
		out = append(out, join(j.build(), j.sendAsync()).Indent(1)...)

		return append(out, closing...)
	}

	f := function{
		Open:    open,
		Build:   j.build(),
		Execute: j.execute(),
		Check:   j.check(),
		Handle:  j.handle(),
		Close:   closing,
	}

	if j.checked() {
		f.Guard = j.guard
	}

	return f.Block()
}

// mediaType returns the OkHttp media type expression for the body.
func (j java) mediaType() string {
	contentType, ok := j.request.Headers.Get("Content-Type")
	if !ok {
		contentType = j.body().ContentType
	}

	if contentType == "" {
		return "null"
	}

	return fmt.Sprintf("MediaType.parse(%s)", cQuote.quote(contentType))
}

// build declares the url, the client, the body and the request.
func (j java) build() Block {
	w := newWriter("//")
	w.line("String url = %s;", j.value(j.url()))
	w.blank()

	if j.okhttp {
		j.okhttpClient(w)
	} else {
		j.httpClient(w)
	}

	w.blank()

	if j.okhttp {
		j.okhttpBody(w)
	} else {
		j.httpBody(w)
	}

	w.blank()
	j.newRequest(w)

	if j.logging() {
		w.blank()
		w.line("LOGGER.info(%s);", cQuote.quote("Sending "+j.method()+" request to "+j.baseURL()))
	}

	return w.Block()
}

func (j java) httpClient(w *writer) {
	w.line("HttpClient client = HttpClient.newBuilder()")
	w.depth += 2

	if j.timeout > 0 {
		w.line(".connectTimeout(%s)", j.duration())
	}

	if j.request.Flags.FollowRedirects {
		w.line(".followRedirects(HttpClient.Redirect.NORMAL)")
	}

	if j.insecure {
		w.line(".sslContext(insecureContext())")
	}

	w.line(".build();")
	w.depth -= 2
}

func (j java) okhttpClient(w *writer) {
	w.line("OkHttpClient client = new OkHttpClient.Builder()")
	w.depth += 2

	if j.timeout > 0 {
		w.line(".callTimeout(%s)", j.duration())
	}

	if j.insecure {
		w.line(".sslSocketFactory(insecureContext().getSocketFactory(), TRUST_ALL)")
		w.line(".hostnameVerifier((hostname, session) -> true)")
	}

	w.line(".build();")
	w.depth -= 2
}

func (j java) httpBody(w *writer) {
	body := j.body()

	switch {
	case body.Kind == spec.BodyNone:
		w.line("HttpRequest.BodyPublisher body = HttpRequest.BodyPublishers.noBody();")
	case body.File != "":
		j.fileNote(w)
		w.line("HttpRequest.BodyPublisher body = HttpRequest.BodyPublishers.ofFile(Path.of(%s));", cQuote.quote(body.File))
	case body.Kind == spec.BodyMultipart:
		w.line(`String boundary = "uncurl-" + System.nanoTime();`)
		w.line("ByteArrayOutputStream form = new ByteArrayOutputStream();")

		for _, field := range body.Fields {
			if !field.File {
				w.line("writeField(form, boundary, %s, %s);", cQuote.quote(field.Name), cQuote.quote(field.Value))
				continue
			}

			contentType := field.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			w.line("writeFile(form, boundary, %s, Path.of(%s), %s);",
				cQuote.quote(field.Name), cQuote.quote(field.Value), cQuote.quote(contentType))
		}

		w.line(`form.write(("--" + boundary + "--\r\n").getBytes(StandardCharsets.UTF_8));`)
		w.line("HttpRequest.BodyPublisher body = HttpRequest.BodyPublishers.ofByteArray(form.toByteArray());")
	default:
		w.line("HttpRequest.BodyPublisher body = HttpRequest.BodyPublishers.ofString(%s);", cQuote.quote(j.payload()))
	}
}

func (j java) okhttpBody(w *writer) {
	body := j.body()

	switch {
	case body.Kind == spec.BodyNone:
		switch j.method() {
		case "POST", "PUT", "PATCH":
			w.line("RequestBody body = RequestBody.create(new byte[0], null);")
		default:
			w.line("RequestBody body = null;")
		}
	case body.File != "":
		j.fileNote(w)
		w.line("RequestBody body = RequestBody.create(new File(%s), %s);", cQuote.quote(body.File), j.mediaType())
	case body.Kind == spec.BodyMultipart:
		w.line("RequestBody body = new MultipartBody.Builder()")
		w.depth += 2
		w.line(".setType(MultipartBody.FORM)")

		for _, field := range body.Fields {
			if !field.File {
				w.line(".addFormDataPart(%s, %s)", cQuote.quote(field.Name), cQuote.quote(field.Value))
				continue
			}

			mediaType := "null"
			if field.ContentType != "" {
				mediaType = fmt.Sprintf("MediaType.parse(%s)", cQuote.quote(field.ContentType))
			}

			w.line(".addFormDataPart(%s, %s, RequestBody.create(new File(%s), %s))",
				cQuote.quote(field.Name), cQuote.quote(baseName(field.Value)), cQuote.quote(field.Value), mediaType)
		}

		w.line(".build();")
		w.depth -= 2
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		w.line("RequestBody body = new FormBody.Builder()")
		w.depth += 2

		for _, field := range body.Fields {
			w.line(".add(%s, %s)", cQuote.quote(field.Name), cQuote.quote(field.Value))
		}

		w.line(".build();")
		w.depth -= 2
	default:
		w.line("RequestBody body = RequestBody.create(%s, %s);", cQuote.quote(j.payload()), j.mediaType())
	}
}

// basicHeader returns the Authorization header value for basic auth.
func (j java) basicHeader() string {
	if j.okhttp {
		return fmt.Sprintf("Credentials.basic(%s, %s)", cQuote.quote(j.username()), j.value(j.password()))
	}

	credentials := concat(append(envvars.Literal(j.username()+":"), j.password()...), cQuote, j.env, " + ")

	return fmt.Sprintf(`"Basic " + Base64.getEncoder().encodeToString((%s).getBytes(StandardCharsets.UTF_8))`, credentials)
}

func (j java) newRequest(w *writer) {
	if j.okhttp {
		w.line("Request request = new Request.Builder()")
		w.depth += 2
		w.line(".url(url)")
	} else {
		w.line("HttpRequest request = HttpRequest.newBuilder()")
		w.depth += 2
		w.line(".uri(URI.create(url))")

		if j.timeout > 0 {
			w.line(".timeout(%s)", j.duration())
		}
	}

	for _, h := range j.headers {
		if !j.okhttp && slices.Contains(javaRestricted, strings.ToLower(h.Name)) {
			w.note("%s is set by the client", h.Name)
			continue
		}

		w.line(".header(%s, %s)", cQuote.quote(h.Name), j.value(h.Value))
	}

	if j.multipart() && !j.okhttp {
		w.line(`.header("Content-Type", "multipart/form-data; boundary=" + boundary)`)
	}

	if j.basicAuth() {
		w.line(`.header("Authorization", %s)`, j.basicHeader())
	}

	w.line(".method(%s, body)", cQuote.quote(j.method()))
	w.line(".build();")
	w.depth -= 2
}

// execute sends the request, leaving its status and body in status and text.
func (j java) execute() Block {
	w := newWriter("//")

	if j.okhttp {
		send := "client.newCall(request).execute()"
		if j.retry() {
			send = "withRetry(() -> client.newCall(request).execute())"
		}

		w.line("int status;")
		w.line("String text;")
		w.open("try (Response response = %s) {", send)
		w.line("status = response.code();")
		w.line("text = response.body().string();")
		w.close("}")

		return w.Block()
	}

	send := "client.send(request, HttpResponse.BodyHandlers.ofString())"
	if j.retry() {
		send = "withRetry(() -> " + send + ")"
	}

	w.line("HttpResponse<String> response = %s;", send)
	w.line("int status = response.statusCode();")
	w.line("String text = response.body();")

	return w.Block()
}

// sendAsync sends the request asynchronously, checking and handling the
// response in a continuation.
func (j java) sendAsync() Block {
	w := newWriter("//")

	send := "client.sendAsync(request, HttpResponse.BodyHandlers.ofString())"
	if j.retry() {
		send = "withRetry(() -> " + send + ", 1)"
	}

	w.line("return %s", send)
	w.depth += 2
	w.open(".thenApply(response -> {")
	w.line("int status = response.statusCode();")
	w.line("String text = response.body();")
	w.add(join(Block{}, j.check(), j.handle()))
	w.close("});")

	return w.Block()
}

// check checks the response status.
func (j java) check() Block {
	if !j.checked() {
		return nil
	}

	w := newWriter("//")

	if j.comprehensive() {
		w.open("if (status >= 500) {")
		w.line("throw new ServerException(status, text);")
		w.close("}")
		w.open("if (status >= 400) {")
		w.line("throw new ClientException(status, text);")
		w.close("}")

		return w.Block()
	}

	w.open("if (status >= 400) {")
	w.line(`throw new RuntimeException("Request failed with status " + status + ": " + text);`)
	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (j java) handle() Block {
	w := newWriter("//")

	if j.logging() {
		w.line(`LOGGER.info("Received " + status);`)
	}

	if out := j.output(); out != "" {
		if j.async {
			w.open("try {")
			w.line("Files.writeString(Path.of(%s), text);", cQuote.quote(out))
			w.close("} catch (IOException e) {")
			w.depth++
			w.line("throw new UncheckedIOException(e);")
			w.close("}")
		} else {
			w.line("Files.writeString(Path.of(%s), text);", cQuote.quote(out))
		}
	}

	w.line("return text;")

	return w.Block()
}

// report returns the statement reporting an error message.
func (j java) report(message string) string {
	if j.logging() {
		return "LOGGER.severe(" + message + ");"
	}

	return "System.err.println(" + message + ");"
}

// guard wraps the method body in a try, reporting and rethrowing failures.
func (j java) guard(body Block) Block {
	w := newWriter("//")
	w.open("try {")
	w.add(body)
	w.depth = 0

	catch := func(exception, message string) {
		w.open("} catch (%s e) {", exception)
		w.line("%s", j.report(message))
		w.line("throw e;")
		w.depth--
	}

	if j.comprehensive() {
		timeout := "HttpTimeoutException"
		if j.okhttp {
			timeout = "InterruptedIOException"
		}

		catch("ClientException", `"Client error " + e.status + ": " + e.body`)
		catch("ServerException", `"Server error " + e.status + ": " + e.body`)
		catch(timeout, `"Request timed out"`)
		catch("IOException", `"Network error: " + e.getMessage()`)
	} else {
		catch("IOException", `"Request failed: " + e.getMessage()`)
	}

	w.line("}")

	return w.Block()
}

// entry declares main and closes the class.
func (j java) entry() Block {
	w := newWriter("//")
	w.depth = 1
	w.open("public static void main(String[] args) throws Exception {")

	if j.async {
		w.line("System.out.println(%s().join());", j.camel())
	} else {
		w.line("System.out.println(%s());", j.camel())
	}

	w.close("}")
	w.depth = 0
	w.line("}")

	return w.Block()
}

// baseName returns the last element of a slash separated path.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i != -1 {
		return path[i+1:]
	}

	return path
}
