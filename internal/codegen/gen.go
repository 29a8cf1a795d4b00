// Package codegen implements generation of HTTP client code from a resolved
// [spec.Request].
//
// Every supported (language, framework) pair is a [Target] in a single registry,
// see [Supported] and [Lookup]. A target's emitter never writes raw text: it fills
// in the logical blocks of a program (imports, types, helpers, the request function
// and its entry point) which are assembled in a fixed order, rendered at the
// requested indentation and finally passed through [Format].
//
// Options a target cannot honour are switched off once, up front, based on its
// [Capabilities], so an emitter only ever sees options it supports and generation
// never fails because of them.
package codegen

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/errs"
	"go.followtheprocess.codes/uncurl/internal/naming"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// rootType is the name given to the type inferred for a JSON request body.
const rootType = "RequestBody"

// Code is the result of generating code for a request.
type Code struct {
	// EnvVars maps each extracted environment variable to its original value
	EnvVars map[string]string `json:"envVars,omitempty" toml:"envVars,omitempty" yaml:"envVars,omitempty"`

	// Code is the generated source code
	Code string `json:"code" toml:"code" yaml:"code"`

	// FileName is a suggested name for the file, including the extension
	FileName string `json:"fileName" toml:"fileName" yaml:"fileName"`

	// FileExtension is the file extension, including the dot
	FileExtension string `json:"fileExtension" toml:"fileExtension" yaml:"fileExtension"`

	// Tests is the generated test file, empty unless tests were asked for and the
	// target supports them
	Tests string `json:"tests,omitempty" toml:"tests,omitempty" yaml:"tests,omitempty"`

	// TestFileName is a suggested name for the test file
	TestFileName string `json:"testFileName,omitempty" toml:"testFileName,omitempty" yaml:"testFileName,omitempty"`

	// Dependencies are the packages the generated code needs
	Dependencies []string `json:"dependencies,omitempty" toml:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Dotenv renders the extracted environment variables as a .env file, sorted
// by name.
func (c Code) Dotenv() string {
	vars := make([]envvars.Var, 0, len(c.EnvVars))
	for _, name := range slices.Sorted(maps.Keys(c.EnvVars)) {
		vars = append(vars, envvars.Var{Name: name, Value: c.EnvVars[name]})
	}

	return envvars.Extraction{Vars: vars}.Dotenv()
}

// Generate generates code for request.
//
// The options are validated and the target looked up first, returning an
// [errs.ConfigError] if either is invalid. Generation itself cannot fail for a
// resolved request, an emitter that panics is a bug and is reported as an
// [errs.GenerationError] rather than crashing the caller.
func Generate(request spec.Request, options Options) (code Code, err error) {
	if err := options.Validate(); err != nil {
		return Code{}, err
	}

	target, err := Lookup(options.Language, options.Framework)
	if err != nil {
		return Code{}, err
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			code = Code{}
			err = &errs.GenerationError{
				Target: target.String(),
				Cause:  fmt.Errorf("%v", recovered),
			}
		}
	}()

	g := newGen(request, target, options)
	p := target.emit(g)

	code = Code{
		Code:          Format(render(p.Block(), g.options), target.Language, g.options),
		FileExtension: target.Extension,
		FileName:      p.FileName,
		Dependencies:  slices.Concat(target.Dependencies, p.Deps),
		EnvVars:       g.env.Map(),
	}

	if code.FileName == "" {
		code.FileName = g.fileBase() + target.Extension
	}

	if len(code.EnvVars) == 0 {
		code.EnvVars = nil
	}

	if g.options.IncludeTests && len(p.Tests) != 0 {
		code.Tests = Format(render(p.Tests, g.options), target.Language, g.options)
		code.TestFileName = p.TestFileName
	}

	code.Dependencies = slices.Compact(code.Dependencies)
	if len(code.Dependencies) == 0 {
		code.Dependencies = nil
	}

	return code, nil
}

// header is a header to send, its value possibly referencing environment variables.
type header struct {
	Name  string
	Value envvars.Value
}

// param is a query parameter, its value possibly referencing environment variables.
type param struct {
	Name  string
	Value envvars.Value
}

// gen is everything an emitter needs to know about the request it is generating
// code for, worked out once so emitters don't each repeat the same decisions.
type gen struct {
	json       *shape.Node        // Parsed JSON body, nil if the body isn't literal JSON
	model      *shape.Model       // Types inferred from the JSON body, nil unless types are on
	target     Target             // The target being generated
	name       string             // Base name for the request function e.g. "post users"
	env        envvars.Extraction // Values to use for headers, query and password
	headers    []header           // Every header to send, including those implied by flags
	query      []param            // Query parameters
	request    spec.Request       // The request
	options    Options            // Options, with anything the target can't do turned off
	timeout    int                // Effective timeout in milliseconds, 0 for none
	insecure   bool               // Whether to skip TLS verification
	expectJSON bool               // Whether the response is expected to be JSON
}

// newGen works out the generation view of request.
func newGen(request spec.Request, target Target, options Options) *gen {
	g := &gen{
		request:  request,
		target:   target,
		options:  options.degrade(target.Capabilities),
		timeout:  options.Timeout,
		insecure: request.Flags.InsecureSkipVerify || !options.ValidateSSL,
	}

	if request.Flags.TimeoutMs > 0 {
		g.timeout = request.Flags.TimeoutMs
	}

	if g.options.ExtractEnvVars {
		g.env = envvars.Extract(request)
	} else {
		g.env = envvars.Literals(request)
	}

	g.name = functionName(request)
	g.headers = g.collectHeaders()

	for i, p := range request.URL.Query {
		value := envvars.Literal(p.Value)
		if i < len(g.env.Query) {
			value = g.env.Query[i]
		}

		g.query = append(g.query, param{Name: p.Name, Value: value})
	}

	if request.Body.Kind == spec.BodyJSON && request.Body.File == "" {
		if node, err := shape.Parse(request.Body.Payload); err == nil {
			g.json = node
		}
	}

	if g.options.IncludeTypes && g.json != nil && (g.json.Kind == shape.Object || g.json.Kind == shape.Array) {
		model := shape.Infer(g.json, rootType)
		g.model = &model
	}

	accept, _ := request.Headers.Get("Accept")
	g.expectJSON = strings.Contains(strings.ToLower(accept), "json")

	return g
}

// collectHeaders returns every header to send: those given explicitly followed by
// those implied by other flags.
func (g *gen) collectHeaders() []header {
	request := g.request
	headers := make([]header, 0, len(request.Headers)+3)

	for i, h := range request.Headers {
		if request.Body.Kind == spec.BodyMultipart && strings.EqualFold(h.Name, "Content-Type") {
			// The client library has to set this itself, it includes the boundary
			continue
		}

		headers = append(headers, header{Name: h.Name, Value: g.env.Header(i, h)})
	}

	if request.Flags.UserAgent != "" && !request.Headers.Has("User-Agent") {
		headers = append(headers, header{Name: "User-Agent", Value: envvars.Literal(request.Flags.UserAgent)})
	}

	if len(request.Flags.Cookies) != 0 && !request.Headers.Has("Cookie") {
		value := g.env.Cookie
		if len(value) == 0 {
			value = envvars.Literal(spec.CookieHeader(request.Flags.Cookies))
		}

		headers = append(headers, header{Name: "Cookie", Value: value})
	}

	switch request.Body.Kind {
	case spec.BodyJSON, spec.BodyForm, spec.BodyRaw:
		if !request.Headers.Has("Content-Type") && request.Body.ContentType != "" {
			headers = append(headers, header{
				Name:  "Content-Type",
				Value: envvars.Literal(request.Body.ContentType),
			})
		}
	default:
		// None has no content type, multipart is set by the client
	}

	return headers
}

// functionName derives a name for the request function from the method and the
// last meaningful path segment e.g. "POST /api/v1/users/42" -> "post users".
func functionName(request spec.Request) string {
	method := strings.ToLower(request.Method)
	if method == "" {
		method = "get"
	}

	segments := strings.Split(request.URL.Path, "/")
	for _, segment := range slices.Backward(segments) {
		words := naming.Words(segment)
		if len(words) == 0 || !hasLetter(segment) || isVersion(segment) {
			continue
		}

		return method + " " + strings.Join(words, " ")
	}

	return method + " request"
}

// hasLetter reports whether s contains an ASCII letter.
func hasLetter(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
	})
}

// isVersion reports whether a path segment is an API version like "v1".
func isVersion(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}

	return strings.Trim(segment[1:], "0123456789.") == ""
}

// camel returns the request function name in camelCase.
func (g *gen) camel() string {
	return naming.Identifier(naming.Camel(g.name), "request")
}

// snake returns the request function name in snake_case.
func (g *gen) snake() string {
	return naming.Identifier(naming.Snake(g.name), "request_")
}

// fileBase returns the default base name for generated files e.g. "post-users".
func (g *gen) fileBase() string {
	return naming.Kebab(g.name)
}

// pascal returns the request function name in PascalCase.
func (g *gen) pascal() string {
	return naming.Identifier(naming.Pascal(g.name), "Request")
}

// url returns the request URL with its query string, secret parameters
// referencing their environment variables.
func (g *gen) url() envvars.Value {
	base := g.request.URL.Base()
	if len(g.query) == 0 {
		return envvars.Literal(base)
	}

	value := envvars.Value{}
	literal := base + "?"

	for i, p := range g.query {
		if i > 0 {
			literal += "&"
		}

		literal += spec.Escape(p.Name) + "="

		if p.Value.IsLiteral() {
			literal += spec.Escape(p.Value.Text())
			continue
		}

		value = append(value, envvars.Part{Text: literal})
		value = append(value, p.Value...)
		literal = ""
	}

	if literal != "" {
		value = append(value, envvars.Part{Text: literal})
	}

	return value
}

// baseURL returns the request URL without its query string, safe to print as it
// can never contain a secret.
func (g *gen) baseURL() string {
	return g.request.URL.Base()
}

// method returns the request method.
func (g *gen) method() string {
	if g.request.Method == "" {
		return "GET"
	}

	return g.request.Method
}

// hasBody reports whether the request sends a body.
func (g *gen) hasBody() bool {
	return g.request.Body.Kind != spec.BodyNone
}

// body returns the request body.
func (g *gen) body() spec.Body {
	return g.request.Body
}

// basicAuth reports whether the request uses basic auth given with -u or in the
// URL, which clients have native support for.
func (g *gen) basicAuth() bool {
	return g.request.Auth.NativeBasic()
}

// username returns the basic auth username.
func (g *gen) username() string {
	return g.request.Auth.Username
}

// password returns the basic auth password, possibly an environment variable.
func (g *gen) password() envvars.Value {
	return g.env.Password
}

// payload returns the request body as text, empty if it is read from a file.
func (g *gen) payload() string {
	if g.json != nil {
		return shape.Compact(g.json)
	}

	return g.request.Body.Payload
}

// output returns the file the response should be written to, empty for none.
func (g *gen) output() string {
	return g.request.Flags.Output
}

// retry reports whether to generate retry logic.
func (g *gen) retry() bool {
	return g.options.RetryLogic
}

// attempts returns the number of attempts to make when retrying.
func (g *gen) attempts() int {
	return g.options.RetryAttempts
}

// logging reports whether to generate logging.
func (g *gen) logging() bool {
	return g.options.IncludeLogging
}

// errors returns the error handling strategy.
func (g *gen) errors() ErrorHandling {
	return g.options.ErrorHandling
}

// comprehensive reports whether comprehensive error handling is on.
func (g *gen) comprehensive() bool {
	return g.options.ErrorHandling == ErrorHandlingComprehensive
}

// checked reports whether the response status should be checked at all.
func (g *gen) checked() bool {
	return g.options.ErrorHandling != ErrorHandlingNone
}

// seconds returns the timeout in seconds, formatted for a literal.
func (g *gen) seconds() string {
	return formatSeconds(g.timeout)
}

// formatSeconds formats a duration in milliseconds as seconds, without a
// fractional part if it's whole.
func formatSeconds(ms int) string {
	if ms%1000 == 0 {
		return fmt.Sprint(ms / 1000)
	}

	return strings.TrimRight(fmt.Sprintf("%.3f", float64(ms)/1000), "0")
}

// envNames returns the names of the extracted environment variables.
func (g *gen) envNames() []string {
	names := make([]string, 0, len(g.env.Vars))
	for _, v := range g.env.Vars {
		names = append(names, v.Name)
	}

	return names
}

// intro writes the explanatory comment at the top of every generated file.
func (g *gen) intro(w *writer) {
	w.note("%s %s", g.method(), g.baseURL())

	if names := g.envNames(); len(names) != 0 {
		w.note("Requires environment variables: %s", strings.Join(names, ", "))
	}

	if g.insecure {
		w.note("WARNING: TLS certificate verification is disabled")
	}
}

// fileNote writes a comment explaining a body read from a file.
func (g *gen) fileNote(w *writer) {
	if file := g.request.Body.File; file != "" {
		w.note("Body is read from %s", file)
	}
}
