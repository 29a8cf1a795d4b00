// Package envvars implements extraction of secret-like values from a request into
// named environment variables.
//
// Extraction never modifies the request. Instead it produces an [Extraction], a side
// table holding, for every value a code emitter may print, a [Value] made of literal
// text and references to environment variables. Emitters render these references in
// their own language so the secret itself never appears in generated code, and the
// original literals are surfaced separately through [Extraction.Vars].
package envvars

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/naming"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// secretName matches header and query parameter names whose values are secrets.
var secretName = regexp.MustCompile(`(?i)key|token|secret|password|passwd|signature`)

// Well known variable names.
const (
	AuthToken         = "AUTH_TOKEN"
	BasicAuthPassword = "BASIC_AUTH_PASSWORD"
)

// Part is a single piece of a [Value], either literal text or a reference to an
// environment variable.
type Part struct {
	// Text is the literal text, empty for an environment variable reference
	Text string

	// Env is the name of the referenced environment variable, empty for literal text
	Env string
}

// IsEnv reports whether the part is an environment variable reference.
func (p Part) IsEnv() bool {
	return p.Env != ""
}

// Value is a string that may contain references to environment variables.
type Value []Part

// Literal returns a [Value] made of nothing but the given text.
func Literal(text string) Value {
	return Value{{Text: text}}
}

// Env returns a [Value] referring entirely to the named environment variable.
func Env(name string) Value {
	return Value{{Env: name}}
}

// IsLiteral reports whether the value contains no environment variable references.
func (v Value) IsLiteral() bool {
	return !slices.ContainsFunc(v, Part.IsEnv)
}

// Text returns the literal text of the value, it is only meaningful if
// [Value.IsLiteral] is true.
func (v Value) Text() string {
	var b strings.Builder
	for _, part := range v {
		b.WriteString(part.Text)
	}

	return b.String()
}

// String returns the value with references in shell syntax e.g.
// "Bearer ${AUTH_TOKEN}".
func (v Value) String() string {
	return v.Render(func(name string) string { return "${" + name + "}" })
}

// Render returns the value with each reference replaced by the result of env.
//
// Literal text is not escaped in any way.
func (v Value) Render(env func(name string) string) string {
	var b strings.Builder

	for _, part := range v {
		if part.IsEnv() {
			b.WriteString(env(part.Env))
			continue
		}

		b.WriteString(part.Text)
	}

	return b.String()
}

// Var is an extracted environment variable.
type Var struct {
	Name  string `json:"name"  toml:"name"  yaml:"name"`
	Value string `json:"value" toml:"value" yaml:"value"`
}

// Extraction is the result of extracting secrets from a request.
type Extraction struct {
	// Vars are the extracted variables in the order they were found
	Vars []Var

	// Headers are the header values, index aligned with the request's headers
	Headers []Value

	// Query are the query parameter values, index aligned with the request's
	// URL query parameters
	Query []Value

	// Password is the basic auth password
	Password Value

	// Cookie is the value of the Cookie header built from the request's -b
	// cookies, empty if there are none
	Cookie Value
}

// Literals returns an [Extraction] with every value taken literally from request,
// as if nothing were secret.
func Literals(request spec.Request) Extraction {
	extraction := Extraction{
		Headers:  make([]Value, 0, len(request.Headers)),
		Query:    make([]Value, 0, len(request.URL.Query)),
		Password: Literal(request.Auth.Password),
	}

	for _, header := range request.Headers {
		extraction.Headers = append(extraction.Headers, Literal(header.Value))
	}

	for _, param := range request.URL.Query {
		extraction.Query = append(extraction.Query, Literal(param.Value))
	}

	if len(request.Flags.Cookies) != 0 {
		extraction.Cookie = Literal(spec.CookieHeader(request.Flags.Cookies))
	}

	return extraction
}

// Extract finds secret-like values in request and moves them into environment
// variables.
//
// The Authorization header becomes AUTH_TOKEN (keeping any scheme e.g. "Bearer " as
// literal text), other headers and query parameters whose names look secret become a
// variable named after them, as do cookies with secret looking names, and a basic
// auth password becomes BASIC_AUTH_PASSWORD.
// Names are made unique with a numeric suffix, the same value found twice reuses
// the same variable.
func Extract(request spec.Request) Extraction {
	t := newTable()
	extraction := Extraction{
		Headers:  make([]Value, 0, len(request.Headers)),
		Query:    make([]Value, 0, len(request.URL.Query)),
		Password: Literal(request.Auth.Password),
	}

	for _, header := range request.Headers {
		extraction.Headers = append(extraction.Headers, t.header(header))
	}

	for _, param := range request.URL.Query {
		if param.Value == "" || !secretName.MatchString(param.Name) {
			extraction.Query = append(extraction.Query, Literal(param.Value))
			continue
		}

		extraction.Query = append(extraction.Query, Env(t.define(nameFor(param.Name), param.Value)))
	}

	// An explicit Cookie header replaces the -b cookies entirely
	if !request.Headers.Has("Cookie") {
		extraction.Cookie = t.cookies(request.Flags.Cookies)
	}

	if request.Auth.NativeBasic() && request.Auth.Password != "" {
		extraction.Password = Env(t.define(BasicAuthPassword, request.Auth.Password))
	}

	extraction.Vars = t.vars

	return extraction
}

// Map returns the extracted variables as a map of name to value.
func (e Extraction) Map() map[string]string {
	vars := make(map[string]string, len(e.Vars))
	for _, v := range e.Vars {
		vars[v.Name] = v.Value
	}

	return vars
}

// Header returns the value for the header at index i, or the literal value
// if the extraction doesn't cover it.
func (e Extraction) Header(i int, header spec.Header) Value {
	if i < len(e.Headers) {
		return e.Headers[i]
	}

	return Literal(header.Value)
}

// Dotenv renders the extracted variables in .env file format.
func (e Extraction) Dotenv() string {
	var b strings.Builder
	for _, v := range e.Vars {
		b.WriteString(v.Name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(v.Value))
		b.WriteByte('\n')
	}

	return b.String()
}

// table allocates unique variable names.
type table struct {
	values map[string]string // Name to value
	vars   []Var             // Variables in definition order
}

// newTable returns a new, empty [table].
func newTable() *table {
	return &table{values: make(map[string]string)}
}

// define records value under name, or name with a numeric suffix if name is taken
// by a different value, returning the name actually used.
func (t *table) define(name, value string) string {
	candidate := name
	for n := 2; ; n++ {
		existing, taken := t.values[candidate]
		if !taken {
			break
		}

		if existing == value {
			return candidate
		}

		candidate = name + "_" + strconv.Itoa(n)
	}

	t.values[candidate] = value
	t.vars = append(t.vars, Var{Name: candidate, Value: value})

	return candidate
}

// header returns the value to use for header, extracting it if secret.
func (t *table) header(header spec.Header) Value {
	if header.Value == "" {
		return Literal(header.Value)
	}

	if strings.EqualFold(header.Name, "Authorization") {
		scheme, credentials, found := strings.Cut(header.Value, " ")
		credentials = strings.TrimSpace(credentials)

		if !found || credentials == "" {
			return Env(t.define(AuthToken, header.Value))
		}

		return Value{{Text: scheme + " "}, {Env: t.define(AuthToken, credentials)}}
	}

	if !secretName.MatchString(header.Name) {
		return Literal(header.Value)
	}

	return Env(t.define(nameFor(header.Name), header.Value))
}

// cookies returns the Cookie header value for cookies, extracting the values of
// those whose names look secret.
func (t *table) cookies(cookies []spec.Cookie) Value {
	var value Value

	for i, cookie := range cookies {
		if i > 0 {
			value = value.appendText("; ")
		}

		if cookie.Value == "" || !secretName.MatchString(cookie.Name) {
			value = value.appendText(cookie.Name + "=" + cookie.Value)
			continue
		}

		value = value.appendText(cookie.Name + "=")
		value = append(value, Part{Env: t.define(nameFor(cookie.Name), cookie.Value)})
	}

	return value
}

// appendText appends literal text to v, joining it onto v's last part if that's
// literal too.
func (v Value) appendText(text string) Value {
	if n := len(v); n != 0 && !v[n-1].IsEnv() {
		v[n-1].Text += text
		return v
	}

	return append(v, Part{Text: text})
}

// nameFor derives a variable name from a header or parameter name e.g.
// "X-Api-Key" -> "API_KEY".
func nameFor(name string) string {
	trimmed := name
	if len(name) > 2 && strings.EqualFold(name[:2], "x-") {
		trimmed = name[2:]
	}

	derived := naming.ScreamingSnake(trimmed)
	if derived == "" {
		return "SECRET"
	}

	return naming.Identifier(derived, "VAR_")
}
