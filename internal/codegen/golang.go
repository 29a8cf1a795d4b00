package codegen

import (
	"fmt"
	"net/http"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/naming"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// golang generates Go using net/http.
type golang struct {
	*gen
	ptr bool // Whether a literal needs the ptr helper
}

// emitGo is the emitter for go.
func emitGo(g *gen) program {
	e := &golang{gen: g}

	// The request function is built first, it decides which helpers are needed
	main := e.function()

	prog := program{
		FileName: "main.go",
		Preamble: e.preamble(),
		Imports:  e.imports(),
		Types:    join(e.types(), e.errorTypes()),
		Helpers:  e.helpers(),
		Main:     main,
		Entry:    e.entry(),
	}

	if g.options.IncludeTests {
		prog.Tests = e.tests()
		prog.TestFileName = "main_test.go"
	}

	return prog
}

func (g *golang) preamble() Block {
	w := newWriter("//")
	g.intro(w)
	w.line("package main")

	return w.Block()
}

// imports lists every package the program might use, goimports prunes those
// that end up unused.
func (g *golang) imports() Block {
	w := newWriter("//")
	w.open("import (")

	packages := []string{"context", "fmt", "io", "net/http", "os"}

	switch {
	case g.body().File != "":
	case g.model != nil:
		packages = append(packages, "encoding/json")
	case g.body().Kind == spec.BodyMultipart:
		packages = append(packages, "bytes", "mime/multipart", "path/filepath")
	case g.body().Kind == spec.BodyForm && len(g.body().Fields) != 0:
		packages = append(packages, "net/url")
	}

	if g.readsBytes() {
		packages = append(packages, "bytes")
	}

	if g.hasBody() && !g.readsBytes() {
		packages = append(packages, "strings")
	}

	if g.timeout > 0 || g.retry() {
		packages = append(packages, "time")
	}

	if g.insecure {
		packages = append(packages, "crypto/tls")
	}

	if g.logging() {
		packages = append(packages, "log/slog")
	}

	if g.comprehensive() {
		packages = append(packages, "errors", "net")
	}

	seen := make(map[string]bool, len(packages))
	for _, pkg := range packages {
		if seen[pkg] {
			continue
		}

		seen[pkg] = true

		w.line("%q", pkg)
	}

	w.close(")")

	return w.Block()
}

// readsBytes reports whether the request body is held as a []byte rather than
// a string.
func (g *golang) readsBytes() bool {
	return g.body().File != "" || g.model != nil || g.body().Kind == spec.BodyMultipart
}

// env renders a reference to an environment variable.
func (g *golang) env(name string) string {
	return fmt.Sprintf("os.Getenv(%q)", name)
}

// value renders a value as a string expression.
func (g *golang) value(value envvars.Value) string {
	return concat(value, cQuote, g.env, " + ")
}

// str returns s as a Go string literal, raw if that reads better.
func (g *golang) str(s string) string {
	if strings.Contains(s, `"`) && !strings.ContainsAny(s, "`\r\n") && !strings.ContainsFunc(s, isControl) {
		return "`" + s + "`"
	}

	return cQuote.quote(s)
}

// isControl reports whether r is an ASCII control character.
func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// goType returns the Go type for an inferred type, a pointer if it is a
// struct or scalar that may be absent.
func goType(t shape.Type, pointer bool) string {
	var name string

	switch t.Kind {
	case shape.Boolean:
		name = "bool"
	case shape.Integer:
		name = "int"
	case shape.Float:
		name = "float64"
	case shape.Text:
		name = "string"
	case shape.Struct:
		name = t.Name
	case shape.List:
		return "[]" + goType(*t.Elem, t.Elem.Nullable)
	default:
		return "any"
	}

	if pointer {
		return "*" + name
	}

	return name
}

// goField returns the exported Go name for a JSON key.
func goField(key string) string {
	return naming.Identifier(naming.Pascal(key), "Field")
}

// types declares a struct for every object in the JSON body.
func (g *golang) types() Block {
	if g.model == nil {
		return nil
	}

	w := newWriter("//")

	for i, s := range g.model.Structs {
		if i != 0 {
			w.blank()
		}

		if s.Name == rootType {
			w.note("%s is the JSON request body.", rootType)
		}

		w.open("type %s struct {", s.Name)

		names := fieldNames(s, "Field", goField)
		for j, field := range s.Fields {
			tag := field.Key
			if field.Optional {
				tag += ",omitempty"
			}

			w.line("%s %s `json:%q`", names[j], goType(field.Type, field.Optional || field.Type.Nullable), tag)
		}

		w.close("}")
	}

	if g.model.Root.Kind == shape.List {
		w.blank()
		w.note("%s is the JSON request body.", rootType)
		w.line("type %s %s", rootType, goType(g.model.Root, false))
	}

	return w.Block()
}

// literal writes node as a Go value of type t.
func (g *golang) literal(w *writer, node *shape.Node, t shape.Type, pointer bool, prefix, suffix string) {
	if node.Kind == shape.Null {
		w.line("%snil%s", prefix, suffix)
		return
	}

	switch t.Kind {
	case shape.Struct:
		if node.Kind != shape.Object {
			g.anyLiteral(w, node, prefix, suffix)
			return
		}

		s := g.structOf(t)
		names := fieldNames(s, "Field", goField)
		amp := ""

		if pointer {
			amp = "&"
		}

		if len(node.Fields) == 0 {
			w.line("%s%s%s{}%s", prefix, amp, t.Name, suffix)
			return
		}

		w.open("%s%s%s{", prefix, amp, t.Name)

		for _, member := range node.Fields {
			i := fieldIndex(s, member.Key)
			if i == -1 || member.Value.Kind == shape.Null {
				continue
			}

			field := s.Fields[i]
			g.literal(w, member.Value, field.Type, field.Optional || field.Type.Nullable, names[i]+": ", ",")
		}

		w.close("}%s", suffix)
	case shape.List:
		if node.Kind != shape.Array {
			g.anyLiteral(w, node, prefix, suffix)
			return
		}

		typ := goType(t, false)
		if len(node.Items) == 0 {
			w.line("%s%s{}%s", prefix, typ, suffix)
			return
		}

		w.open("%s%s{", prefix, typ)

		for _, item := range node.Items {
			g.literal(w, item, *t.Elem, t.Elem.Nullable, "", ",")
		}

		w.close("}%s", suffix)
	case shape.Boolean, shape.Integer, shape.Float, shape.Text:
		value := jsonLiteral.scalar(node)
		if pointer {
			g.ptr = true
			value = fmt.Sprintf("ptr[%s](%s)", goType(t, false), value)
		}

		w.line("%s%s%s", prefix, value, suffix)
	default:
		g.anyLiteral(w, node, prefix, suffix)
	}
}

// anyLiteral writes node as a value of type any.
func (g *golang) anyLiteral(w *writer, node *shape.Node, prefix, suffix string) {
	switch node.Kind {
	case shape.Object:
		if len(node.Fields) == 0 {
			w.line("%smap[string]any{}%s", prefix, suffix)
			return
		}

		w.open("%smap[string]any{", prefix)

		for _, field := range node.Fields {
			g.anyLiteral(w, field.Value, cQuote.quote(field.Key)+": ", ",")
		}

		w.close("}%s", suffix)
	case shape.Array:
		if len(node.Items) == 0 {
			w.line("%s[]any{}%s", prefix, suffix)
			return
		}

		w.open("%s[]any{", prefix)

		for _, item := range node.Items {
			g.anyLiteral(w, item, "", ",")
		}

		w.close("}%s", suffix)
	case shape.Null:
		w.line("%snil%s", prefix, suffix)
	default:
		w.line("%s%s%s", prefix, jsonLiteral.scalar(node), suffix)
	}
}

// errorTypes declares the error returned for failed responses under
// comprehensive error handling.
func (g *golang) errorTypes() Block {
	if !g.comprehensive() {
		return nil
	}

	w := newWriter("//")
	w.note("HTTPError is returned for responses with a 4xx or 5xx status.")
	w.open("type HTTPError struct {")
	w.line("Body string")
	w.line("StatusCode int")
	w.close("}")
	w.blank()
	w.line("// Error implements the error interface.")
	w.open("func (e *HTTPError) Error() string {")
	w.line("%s", `return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)`)
	w.close("}")
	w.blank()
	w.line("// IsServerError reports whether the server was at fault, the request may succeed if retried.")
	w.open("func (e *HTTPError) IsServerError() bool {")
	w.line("return e.StatusCode >= http.StatusInternalServerError")
	w.close("}")

	return w.Block()
}

// helpers declares the retry, multipart and pointer helpers the request
// function needs.
func (g *golang) helpers() Block {
	var blocks []Block

	if g.retry() {
		w := newWriter("//")
		w.line("// withRetry calls send until it succeeds, retrying network errors, 429 and")
		w.line("// 5xx responses with exponential backoff.")
		w.open("func withRetry(attempts int, send func() (*http.Response, error)) (*http.Response, error) {")
		w.line("delay := 500 * time.Millisecond")
		w.blank()
		w.open("for attempt := 1; ; attempt++ {")
		w.line("resp, err := send()")
		w.line("retryable := err != nil || resp.StatusCode == http.StatusTooManyRequests ||")
		w.line("\tresp.StatusCode >= http.StatusInternalServerError")
		w.blank()
		w.open("if !retryable || attempt >= attempts {")
		w.line("return resp, err")
		w.close("}")
		w.blank()
		w.open("if err == nil {")
		w.line("resp.Body.Close()")
		w.close("}")
		w.blank()

		if g.logging() {
			w.line(`slog.Warn("retrying request", "attempt", attempt, "delay", delay)`)
		}

		w.line("time.Sleep(delay)")
		w.line("delay *= 2")
		w.close("}")
		w.close("}")

		blocks = append(blocks, w.Block())
	}

	if g.body().Kind == spec.BodyMultipart && g.body().File == "" {
		w := newWriter("//")
		w.line("// addFile adds the contents of the file at path to form as field.")
		w.open("func addFile(form *multipart.Writer, field, path string) error {")
		w.line("content, err := os.ReadFile(path)")
		w.open("if err != nil {")
		w.line("return err")
		w.close("}")
		w.blank()
		w.line("part, err := form.CreateFormFile(field, filepath.Base(path))")
		w.open("if err != nil {")
		w.line("return err")
		w.close("}")
		w.blank()
		w.line("_, err = part.Write(content)")
		w.blank()
		w.line("return err")
		w.close("}")

		blocks = append(blocks, w.Block())
	}

	if g.ptr {
		w := newWriter("//")
		w.line("// ptr returns a pointer to v.")
		w.open("func ptr[T any](v T) *T {")
		w.line("return &v")
		w.close("}")

		blocks = append(blocks, w.Block())
	}

	return join(blocks...)
}

// methodExpr returns the expression for the request method.
func (g *golang) methodExpr() string {
	switch g.method() {
	case http.MethodGet:
		return "http.MethodGet"
	case http.MethodHead:
		return "http.MethodHead"
	case http.MethodPost:
		return "http.MethodPost"
	case http.MethodPut:
		return "http.MethodPut"
	case http.MethodPatch:
		return "http.MethodPatch"
	case http.MethodDelete:
		return "http.MethodDelete"
	case http.MethodOptions:
		return "http.MethodOptions"
	default:
		return cQuote.quote(g.method())
	}
}

// function builds the request function.
func (g *golang) function() Block {
	f := function{
		Open:    Block{{Text: fmt.Sprintf("func %s(ctx context.Context, client *http.Client) ([]byte, error) {", g.camel())}},
		Build:   g.build(),
		Execute: g.execute(),
		Check:   g.check(),
		Handle:  g.handle(),
		Close:   Block{{Text: "}"}},
	}

	return f.Block()
}

// fail writes the early return for a failed step.
func (g *golang) fail(w *writer, cond, format string) {
	w.open("if %s {", cond)
	w.line("return nil, fmt.Errorf(%s, err)", cQuote.quote(format))
	w.close("}")
}

// build declares the endpoint and the request body.
func (g *golang) build() Block {
	w := newWriter("//")
	w.line("endpoint := %s", g.value(g.url()))

	body := g.body()

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		w.line("payload, err := os.ReadFile(%s)", cQuote.quote(body.File))
		g.fail(w, "err != nil", "could not read request body: %w")
	case g.model != nil:
		if g.model.Root.Kind == shape.List {
			g.literal(w, g.json, shape.Type{Kind: shape.List, Elem: g.model.Root.Elem}, false, "payload, err := json.Marshal(", ")")
		} else {
			g.literal(w, g.json, g.model.Root, false, "payload, err := json.Marshal(", ")")
		}

		g.fail(w, "err != nil", "could not encode request body: %w")
	case body.Kind == spec.BodyMultipart:
		w.line("var buf bytes.Buffer")
		w.line("form := multipart.NewWriter(&buf)")
		w.blank()

		for _, field := range body.Fields {
			if field.File {
				if field.ContentType != "" {
					w.note("Sent as application/octet-stream, use CreatePart to send %s", field.ContentType)
				}

				g.fail(w,
					fmt.Sprintf("err := addFile(form, %s, %s); err != nil", cQuote.quote(field.Name), cQuote.quote(field.Value)),
					"could not add file: %w",
				)

				continue
			}

			g.fail(w,
				fmt.Sprintf("err := form.WriteField(%s, %s); err != nil", cQuote.quote(field.Name), cQuote.quote(field.Value)),
				"could not write form field: %w",
			)
		}

		g.fail(w, "err := form.Close(); err != nil", "could not close form: %w")
		w.blank()
		w.line("payload := buf.Bytes()")
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		w.line("form := url.Values{}")

		for _, field := range body.Fields {
			w.line("form.Add(%s, %s)", cQuote.quote(field.Name), cQuote.quote(field.Value))
		}

		w.blank()
		w.line("payload := form.Encode()")
	default:
		w.line("payload := %s", g.str(g.payload()))
	}

	return w.Block()
}

// reader returns the expression for the request body reader.
func (g *golang) reader() string {
	switch {
	case !g.hasBody():
		return "nil"
	case g.readsBytes():
		return "bytes.NewReader(payload)"
	default:
		return "strings.NewReader(payload)"
	}
}

// newRequest writes the statements creating the request and setting its headers,
// each failure returning with ret.
func (g *golang) newRequest(w *writer, ret string) {
	w.line("req, err := http.NewRequestWithContext(ctx, %s, endpoint, %s)", g.methodExpr(), g.reader())
	w.open("if err != nil {")
	w.line("%s", ret)
	w.close("}")

	if len(g.headers) != 0 || g.basicAuth() || g.body().Kind == spec.BodyMultipart {
		w.blank()
	}

	seen := make(map[string]bool, len(g.headers))

	for _, h := range g.headers {
		name := http.CanonicalHeaderKey(h.Name)

		switch {
		case name == "Host":
			w.line("req.Host = %s", g.value(h.Value))
		case seen[name]:
			w.line("req.Header.Add(%s, %s)", cQuote.quote(h.Name), g.value(h.Value))
		default:
			w.line("req.Header.Set(%s, %s)", cQuote.quote(h.Name), g.value(h.Value))
		}

		seen[name] = true
	}

	if g.body().Kind == spec.BodyMultipart && g.body().File == "" {
		w.line(`req.Header.Set("Content-Type", form.FormDataContentType())`)
	}

	if g.basicAuth() {
		w.line("req.SetBasicAuth(%s, %s)", cQuote.quote(g.username()), g.value(g.password()))
	}
}

// execute sends the request and reads the response body.
func (g *golang) execute() Block {
	w := newWriter("//")

	if g.logging() {
		w.line(`slog.Info("sending request", "method", %s, "url", %s)`, cQuote.quote(g.method()), cQuote.quote(g.baseURL()))
		w.blank()
	}

	if g.retry() {
		w.open("resp, err := withRetry(%d, func() (*http.Response, error) {", g.attempts())
		g.newRequest(w, "return nil, err")
		w.blank()
		w.line("return client.Do(req)")
		w.close("})")
	} else {
		g.newRequest(w, `return nil, fmt.Errorf("could not create request: %w", err)`)
		w.blank()
		w.line("resp, err := client.Do(req)")
	}

	g.fail(w, "err != nil", "request failed: %w")
	w.line("defer resp.Body.Close()")
	w.blank()
	w.line("body, err := io.ReadAll(resp.Body)")
	g.fail(w, "err != nil", "could not read response body: %w")

	return w.Block()
}

// check checks the response status.
func (g *golang) check() Block {
	w := newWriter("//")

	if g.logging() {
		w.line(`slog.Info("received response", "status", resp.StatusCode)`)
	}

	if !g.checked() {
		return w.Block()
	}

	if g.logging() {
		w.blank()
	}

	w.open("if resp.StatusCode >= http.StatusBadRequest {")

	if g.comprehensive() {
		w.line("return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}")
	} else {
		w.line("%s", `return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, body)`)
	}

	w.close("}")

	return w.Block()
}

// handle writes the response to a file if asked, and returns it.
func (g *golang) handle() Block {
	w := newWriter("//")

	if out := g.output(); out != "" {
		g.fail(w,
			fmt.Sprintf("err := os.WriteFile(%s, body, 0o644); err != nil", cQuote.quote(out)),
			"could not write response: %w",
		)
		w.blank()
	}

	w.line("return body, nil")

	return w.Block()
}

// timeoutExpr returns the client timeout as a time.Duration expression.
func (g *golang) timeoutExpr() string {
	if g.timeout%1000 == 0 {
		return fmt.Sprintf("%d * time.Second", g.timeout/1000)
	}

	return fmt.Sprintf("%d * time.Millisecond", g.timeout)
}

// report returns the statement reporting an error in main.
func (g *golang) report(message string) string {
	if g.logging() {
		return fmt.Sprintf("slog.Error(%s, \"err\", err)", cQuote.quote(message))
	}

	return fmt.Sprintf("fmt.Fprintf(os.Stderr, %s, err)", cQuote.quote(message+": %v\n"))
}

// entry declares main, which builds the client and calls the request function.
func (g *golang) entry() Block {
	w := newWriter("//")
	w.open("func main() {")

	if g.timeout > 0 || g.insecure {
		w.open("client := &http.Client{")

		if g.timeout > 0 {
			w.line("Timeout: %s,", g.timeoutExpr())
		}

		if g.insecure {
			w.open("Transport: &http.Transport{")
			w.line("TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec")
			w.close("},")
		}

		w.close("}")
	} else {
		w.line("client := &http.Client{}")
	}

	w.blank()
	w.line("body, err := %s(context.Background(), client)", g.camel())
	w.open("if err != nil {")

	if g.comprehensive() {
		w.line("var (")
		w.line("\thttpErr *HTTPError")
		w.line("\tnetErr  net.Error")
		w.line(")")
		w.blank()
		w.open("switch {")
		w.line("case errors.As(err, &httpErr) && httpErr.IsServerError():")
		w.line("\t%s", g.report("server error"))
		w.line("case errors.As(err, &httpErr):")
		w.line("\t%s", g.report("client error"))
		w.line("case errors.As(err, &netErr) && netErr.Timeout():")
		w.line("\t%s", g.report("request timed out"))
		w.line("default:")
		w.line("\t%s", g.report("network error"))
		w.close("}")
		w.blank()
	} else {
		w.line("%s", g.report("request failed"))
	}

	w.line("os.Exit(1)")
	w.close("}")
	w.blank()
	w.line("fmt.Println(string(body))")
	w.close("}")

	return w.Block()
}

// tests generates a test file that stubs out the transport.
func (g *golang) tests() Block {
	w := newWriter("//")
	name := g.camel()
	test := naming.Pascal(g.name)

	w.line("package main")
	w.blank()
	w.open("import (")
	w.line(`"context"`)
	w.line(`"io"`)
	w.line(`"net/http"`)
	w.line(`"strings"`)
	w.line(`"testing"`)
	w.close(")")
	w.blank()
	w.line("type roundTripFunc func(*http.Request) (*http.Response, error)")
	w.blank()
	w.open("func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {")
	w.line("return f(r)")
	w.close("}")
	w.blank()
	w.line("// respond returns a client answering every request with status and body,")
	w.line("// recording the requests in sent.")
	w.open("func respond(status int, body string, sent *[]*http.Request) *http.Client {")
	w.open("return &http.Client{")
	w.open("Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {")
	w.line("*sent = append(*sent, r)")
	w.blank()
	w.open("return &http.Response{")
	w.line("StatusCode: status,")
	w.line("Body:       io.NopCloser(strings.NewReader(body)),")
	w.line("Header:     make(http.Header),")
	w.line("Request:    r,")
	w.close("}, nil")
	w.close("}),")
	w.close("}")
	w.close("}")
	w.blank()
	w.open("func Test%s(t *testing.T) {", test)

	for _, env := range g.envNames() {
		w.line("t.Setenv(%s, %s)", cQuote.quote(env), cQuote.quote("test"))
	}

	w.line("var sent []*http.Request")
	w.blank()
	w.open("if _, err := %s(context.Background(), respond(http.StatusOK, `{\"ok\":true}`, &sent)); err != nil {", name)
	w.line(`t.Fatalf("%s() returned an unexpected error: %%v", err)`, name)
	w.close("}")
	w.blank()
	w.open("if len(sent) != 1 {")
	w.line("%s", `t.Fatalf("expected 1 request, got %d", len(sent))`)
	w.close("}")
	w.blank()
	w.open("if got := sent[0].Method; got != %s {", cQuote.quote(g.method()))
	w.line(`t.Errorf("wrong method: got %%s, want %%s", got, %s)`, cQuote.quote(g.method()))
	w.close("}")
	w.blank()
	w.open("if got := sent[0].URL.String(); !strings.HasPrefix(got, %s) {", cQuote.quote(g.baseURL()))
	w.line(`t.Errorf("wrong url: got %%s, want prefix %%s", got, %s)`, cQuote.quote(g.baseURL()))
	w.close("}")
	w.close("}")

	if g.checked() {
		w.blank()
		w.open("func Test%sServerError(t *testing.T) {", test)
		w.line("var sent []*http.Request")
		w.blank()
		w.open("if _, err := %s(context.Background(), respond(http.StatusInternalServerError, \"boom\", &sent)); err == nil {", name)
		w.line(`t.Fatal("expected an error for a 500 response")`)
		w.close("}")
		w.close("}")
	}

	return w.Block()
}
