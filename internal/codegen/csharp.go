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

// csharp generates C# using HttpClient.
type csharp struct {
	*gen
	async bool
}

// emitCSharp is the emitter for csharp.
func emitCSharp(g *gen) program {
	c := csharp{gen: g, async: g.options.Async}

	prog := program{
		FileName: "Program.cs",
		Preamble: c.preamble(),
		Imports:  c.imports(),
		Types:    join(c.types(), c.errorTypes()),
		Helpers:  c.helpers(),
		Main:     c.function().Indent(1),
		Entry:    c.entry(),
	}

	if g.logging() {
		prog.Deps = append(prog.Deps, "Microsoft.Extensions.Logging.Console")
	}

	return prog
}

func (c csharp) preamble() Block {
	w := newWriter("//")
	c.intro(w)

	return w.Block()
}

func (c csharp) imports() Block {
	usings := []string{
		"System",
		"System.IO",
		"System.Net.Http",
		"System.Net.Http.Headers",
		"System.Text",
	}

	if c.async {
		usings = append(usings, "System.Threading.Tasks")
	} else {
		usings = append(usings, "System.Threading")
	}

	if c.model != nil {
		usings = append(usings,
			"System.Collections.Generic",
			"System.Net.Http.Json",
			"System.Text.Json.Nodes",
			"System.Text.Json.Serialization",
		)
	}

	if c.body().Kind == spec.BodyForm && len(c.body().Fields) != 0 && c.body().File == "" {
		usings = append(usings, "System.Collections.Generic")
	}

	if c.logging() {
		usings = append(usings, "Microsoft.Extensions.Logging")
	}

	slices.Sort(usings)
	usings = slices.Compact(usings)

	w := newWriter("//")
	for _, using := range usings {
		w.line("using %s;", using)
	}

	return w.Block()
}

// env renders a reference to an environment variable.
func (c csharp) env(name string) string {
	return fmt.Sprintf("Environment.GetEnvironmentVariable(%s)", cQuote.quote(name))
}

// value renders a value as a string expression.
func (c csharp) value(value envvars.Value) string {
	return concat(value, cQuote, c.env, " + ")
}

// csharpType returns the C# type for an inferred type, nullable if it may be
// absent.
func csharpType(t shape.Type, optional bool) string {
	var name string

	switch t.Kind {
	case shape.Boolean:
		name = "bool"
	case shape.Integer:
		name = "long"
	case shape.Float:
		name = "double"
	case shape.Text:
		name = "string"
	case shape.Struct:
		name = t.Name
	case shape.List:
		name = "List<" + csharpType(*t.Elem, t.Elem.Nullable) + ">"
	default:
		return "object?"
	}

	if optional || t.Nullable {
		return name + "?"
	}

	return name
}

// csharpDefault returns the initializer for a non-nullable reference type
// property, empty if it doesn't need one.
func csharpDefault(t shape.Type, optional bool) string {
	if optional || t.Nullable {
		return ""
	}

	switch t.Kind {
	case shape.Text:
		return ` = "";`
	case shape.Struct, shape.List:
		return " = new();"
	default:
		return ""
	}
}

// types declares a class for every object in the JSON body.
func (c csharp) types() Block {
	if c.model == nil {
		return nil
	}

	w := newWriter("//")

	for i, s := range c.model.Structs {
		if i != 0 {
			w.blank()
		}

		w.line("public class %s", s.Name)
		w.open("{")

		names := fieldNames(s, "Field", csharpProperty)
		for j, field := range s.Fields {
			if j != 0 {
				w.blank()
			}

			w.line("[JsonPropertyName(%s)]", cQuote.quote(field.Key))

			if field.Optional {
				w.line("[JsonIgnore(Condition = JsonIgnoreCondition.WhenWritingNull)]")
			}

			w.line("public %s %s { get; init; }%s",
				csharpType(field.Type, field.Optional), names[j], csharpDefault(field.Type, field.Optional))
		}

		w.close("}")
	}

	return w.Block()
}

// csharpProperty returns the property name for a JSON key.
func csharpProperty(key string) string {
	return naming.Identifier(naming.Pascal(key), "Field")
}

// literal writes node as a C# value of type t.
func (c csharp) literal(w *writer, node *shape.Node, t shape.Type, prefix, suffix string) {
	switch {
	case node.Kind == shape.Null:
		w.line("%snull%s", prefix, suffix)
	case t.Kind == shape.Struct && node.Kind == shape.Object:
		s := c.structOf(t)
		names := fieldNames(s, "Field", csharpProperty)

		w.line("%snew %s", prefix, t.Name)
		w.open("{")

		for _, member := range node.Fields {
			i := fieldIndex(s, member.Key)
			if i == -1 || member.Value.Kind == shape.Null {
				continue
			}

			c.literal(w, member.Value, s.Fields[i].Type, names[i]+" = ", ",")
		}

		w.close("}%s", suffix)
	case t.Kind == shape.List && node.Kind == shape.Array:
		w.line("%snew %s", prefix, csharpType(t, false))
		w.open("{")

		for _, item := range node.Items {
			c.literal(w, item, *t.Elem, "", ",")
		}

		w.close("}%s", suffix)
	case node.Kind == shape.Object || node.Kind == shape.Array:
		w.line("%sJsonNode.Parse(%s)%s", prefix, cQuote.quote(shape.Compact(node)), suffix)
	default:
		w.line("%s%s%s", prefix, jsonLiteral.scalar(node), suffix)
	}
}

// errorTypes declares the exceptions used by comprehensive error handling.
func (c csharp) errorTypes() Block {
	if !c.comprehensive() {
		return nil
	}

	w := newWriter("//")
	w.line("/// <summary>Thrown for responses with a 4xx or 5xx status.</summary>")
	w.line(`public class HttpException(int status, string body) : Exception($"Request failed with status {status}")`)
	w.open("{")
	w.line("public int Status { get; } = status;")
	w.blank()
	w.line("public string Body { get; } = body;")
	w.close("}")
	w.blank()
	w.line("/// <summary>Thrown for responses with a 4xx status.</summary>")
	w.line("public class ClientException(int status, string body) : HttpException(status, body);")
	w.blank()
	w.line("/// <summary>Thrown for responses with a 5xx status.</summary>")
	w.line("public class ServerException(int status, string body) : HttpException(status, body);")

	return w.Block()
}

// helpers opens the Program class and declares the shared client, the logger
// and the retry helper.
func (c csharp) helpers() Block {
	w := newWriter("//")
	w.line("public static class Program")
	w.open("{")

	if c.insecure {
		w.line("private static readonly HttpClient Client = new(new HttpClientHandler")
		w.open("{")
		w.line("ServerCertificateCustomValidationCallback = HttpClientHandler.DangerousAcceptAnyServerCertificateValidator,")
		w.close("})")
	} else {
		w.line("private static readonly HttpClient Client = new()")
	}

	w.open("{")

	if c.timeout > 0 {
		w.line("Timeout = TimeSpan.FromMilliseconds(%d),", c.timeout)
	}

	w.close("};")

	if c.logging() {
		w.blank()
		w.line("private static readonly ILogger Logger = LoggerFactory")
		w.cont(".Create(builder => builder.AddConsole())")
		w.cont(".CreateLogger(%s);", cQuote.quote(c.pascal()))
	}

	if !c.retry() {
		return w.Block()
	}

	returns, send, sleep := "HttpResponseMessage", "Client.Send(build())", "Thread.Sleep"
	name := "WithRetry"

	if c.async {
		returns, send, sleep = "async Task<HttpResponseMessage>", "await Client.SendAsync(build())", "await Task.Delay"
		name = "WithRetryAsync"
	}

	w.blank()
	w.line("private const int Attempts = %d;", c.attempts())
	w.blank()
	w.line("/// <summary>Sends with retries on network errors, 429 and 5xx responses, backing off exponentially.</summary>")
	w.line("private static %s %s(Func<HttpRequestMessage> build)", returns, name)
	w.open("{")
	w.line("for (var attempt = 1; ; attempt++)")
	w.open("{")
	w.line("try")
	w.open("{")
	w.line("var response = %s;", send)
	w.line("var status = (int)response.StatusCode;")
	w.line("if ((status != 429 && status < 500) || attempt >= Attempts)")
	w.open("{")
	w.line("return response;")
	w.close("}")
	w.blank()
	w.line("response.Dispose();")
	w.close("}")
	w.line("catch (HttpRequestException) when (attempt < Attempts)")
	w.open("{")

	if c.logging() {
		w.line(`Logger.LogWarning("Attempt {Attempt} failed, retrying", attempt);`)
	}

	w.close("}")
	w.blank()
	w.line("%s(500 * (1 << (attempt - 1)));", sleep)
	w.close("}")
	w.close("}")

	return w.Block()
}

// function builds the request method.
func (c csharp) function() Block {
	signature := fmt.Sprintf("public static string %s()", c.pascal())
	if c.async {
		signature = fmt.Sprintf("public static async Task<string> %sAsync()", c.pascal())
	}

	f := function{
		Open:    Block{{Text: signature}, {Text: "{"}},
		Build:   c.build(),
		Execute: c.execute(),
		Check:   c.check(),
		Handle:  c.handle(),
		Close:   Block{{Text: "}"}},
	}

	if c.checked() {
		f.Guard = c.guard
	}

	return f.Block()
}

// build declares the url and, without retries, the request.
func (c csharp) build() Block {
	w := newWriter("//")
	w.line("var url = %s;", c.value(c.url()))

	if c.model != nil {
		w.blank()

		root := c.model.Root
		if root.Kind == shape.List {
			root = shape.Type{Kind: shape.List, Elem: root.Elem}
		}

		c.literal(w, c.json, root, "var payload = ", ";")
	}

	w.blank()

	if c.retry() {
		w.line("HttpRequestMessage BuildRequest()")
		w.open("{")
		c.newRequest(w, "var request")
		w.blank()
		w.line("return request;")
		w.close("}")
	} else {
		c.newRequest(w, "using var request")
	}

	if c.logging() {
		w.blank()
		w.line(`Logger.LogInformation("Sending {Method} request to {Url}", %s, %s);`,
			cQuote.quote(c.method()), cQuote.quote(c.baseURL()))
	}

	return w.Block()
}

// isContentHeader reports whether name is a header that belongs to the content
// rather than the request.
func isContentHeader(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "content-")
}

// newRequest writes the statements creating the request as declaration.
func (c csharp) newRequest(w *writer, declaration string) {
	w.line("%s = new HttpRequestMessage(new HttpMethod(%s), url);", declaration, cQuote.quote(c.method()))

	for _, h := range c.headers {
		if isContentHeader(h.Name) {
			continue
		}

		w.line("request.Headers.TryAddWithoutValidation(%s, %s);", cQuote.quote(h.Name), c.value(h.Value))
	}

	if c.basicAuth() {
		credentials := concat(append(envvars.Literal(c.username()+":"), c.password()...), cQuote, c.env, " + ")
		w.line(`request.Headers.Authorization = new AuthenticationHeaderValue("Basic", Convert.ToBase64String(Encoding.UTF8.GetBytes(%s)));`,
			credentials)
	}

	c.writeContent(w)
}

// writeContent sets the request content and its headers.
func (c csharp) writeContent(w *writer) {
	body := c.body()

	switch {
	case body.Kind == spec.BodyNone:
		return
	case body.File != "":
		c.fileNote(w)
		w.line("request.Content = new ByteArrayContent(File.ReadAllBytes(%s));", cQuote.quote(body.File))
	case c.model != nil:
		w.line("request.Content = JsonContent.Create(payload);")
	case body.Kind == spec.BodyMultipart:
		w.line("var form = new MultipartFormDataContent();")

		for _, field := range body.Fields {
			if field.File {
				w.line("form.Add(new ByteArrayContent(File.ReadAllBytes(%s)), %s, %s);",
					cQuote.quote(field.Value), cQuote.quote(field.Name), cQuote.quote(baseName(field.Value)))

				continue
			}

			w.line("form.Add(new StringContent(%s), %s);", cQuote.quote(field.Value), cQuote.quote(field.Name))
		}

		w.line("request.Content = form;")

		return
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		w.line("request.Content = new FormUrlEncodedContent(new[]")
		w.open("{")

		for _, field := range body.Fields {
			w.line("new KeyValuePair<string, string>(%s, %s),", cQuote.quote(field.Name), cQuote.quote(field.Value))
		}

		w.close("});")
	default:
		w.line("request.Content = new StringContent(%s);", cQuote.quote(c.payload()))
	}

	for _, h := range c.headers {
		if !isContentHeader(h.Name) {
			continue
		}

		if strings.EqualFold(h.Name, "Content-Type") {
			w.line("request.Content.Headers.ContentType = MediaTypeHeaderValue.Parse(%s);", c.value(h.Value))
			continue
		}

		w.line("request.Content.Headers.TryAddWithoutValidation(%s, %s);", cQuote.quote(h.Name), c.value(h.Value))
	}
}

// execute sends the request and reads the response body.
func (c csharp) execute() Block {
	w := newWriter("//")

	switch {
	case c.retry() && c.async:
		w.line("using var response = await WithRetryAsync(BuildRequest);")
	case c.retry():
		w.line("using var response = WithRetry(BuildRequest);")
	case c.async:
		w.line("using var response = await Client.SendAsync(request);")
	default:
		w.line("using var response = Client.Send(request);")
	}

	if c.async {
		w.line("var text = await response.Content.ReadAsStringAsync();")
	} else {
		w.line("using var reader = new StreamReader(response.Content.ReadAsStream());")
		w.line("var text = reader.ReadToEnd();")
	}

	if c.logging() {
		w.line(`Logger.LogInformation("Received {Status}", (int)response.StatusCode);`)
	}

	return w.Block()
}

// check checks the response status.
func (c csharp) check() Block {
	if !c.checked() {
		return nil
	}

	w := newWriter("//")

	if !c.comprehensive() {
		w.line("response.EnsureSuccessStatusCode();")
		return w.Block()
	}

	w.line("var status = (int)response.StatusCode;")
	w.line("if (status >= 500)")
	w.open("{")
	w.line("throw new ServerException(status, text);")
	w.close("}")
	w.blank()
	w.line("if (status >= 400)")
	w.open("{")
	w.line("throw new ClientException(status, text);")
	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (c csharp) handle() Block {
	w := newWriter("//")

	if out := c.output(); out != "" {
		if c.async {
			w.line("await File.WriteAllTextAsync(%s, text);", cQuote.quote(out))
		} else {
			w.line("File.WriteAllText(%s, text);", cQuote.quote(out))
		}
	}

	w.line("return text;")

	return w.Block()
}

// report returns the statement reporting an error message.
func (c csharp) report(message string) string {
	if c.logging() {
		return "Logger.LogError(" + message + ");"
	}

	return "Console.Error.WriteLine(" + message + ");"
}

// guard wraps the method body in a try, reporting and rethrowing failures.
func (c csharp) guard(body Block) Block {
	w := newWriter("//")
	w.line("try")
	w.open("{")
	w.add(body)
	w.close("}")

	catch := func(exception, message string) {
		w.line("catch (%s)", exception)
		w.open("{")
		w.line("%s", c.report(message))
		w.line("throw;")
		w.close("}")
	}

	if c.comprehensive() {
		catch("ClientException e", `$"Client error {e.Status}: {e.Body}"`)
		catch("ServerException e", `$"Server error {e.Status}: {e.Body}"`)
		catch("TaskCanceledException", `"Request timed out"`)
		catch("HttpRequestException e", `$"Network error: {e.Message}"`)
	} else {
		catch("HttpRequestException e", `$"Request failed: {e.Message}"`)
	}

	return w.Block()
}

// entry declares Main and closes the class.
func (c csharp) entry() Block {
	w := newWriter("//")
	w.depth = 1

	if c.async {
		w.line("public static async Task Main()")
		w.open("{")
		w.line("Console.WriteLine(await %sAsync());", c.pascal())
	} else {
		w.line("public static void Main()")
		w.open("{")
		w.line("Console.WriteLine(%s());", c.pascal())
	}

	w.close("}")
	w.depth = 0
	w.line("}")

	return w.Block()
}
