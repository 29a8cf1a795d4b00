// Package convert is the public entry point to uncurl, it turns a curl command line
// into HTTP client code for any of the supported targets.
//
// A conversion never panics and never returns a partial result, it either succeeds
// with the generated code and any non-fatal warnings, or fails with a single error:
//
//	result := convert.Convert(`curl -d '{"x":1}' https://api.example.com/items`, convert.DefaultOptions())
//	if !result.Success {
//	    return result.Err()
//	}
//
//	fmt.Print(result.GeneratedCode.Code)
//
// Every call is independent and allocates its own state so any of the functions in
// this package may be called concurrently.
package convert

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen"
	"go.followtheprocess.codes/uncurl/internal/errs"
	"go.followtheprocess.codes/uncurl/internal/spec"
	"go.followtheprocess.codes/uncurl/internal/syntax"
	"go.followtheprocess.codes/uncurl/internal/syntax/parser"
	"go.followtheprocess.codes/uncurl/internal/syntax/resolver"
	"go.followtheprocess.codes/uncurl/internal/syntax/scanner"
)

// DefaultName is the name given to input in warning and error positions when
// the caller doesn't provide one.
const DefaultName = "input"

type (
	// Options control how code is generated.
	Options = codegen.Options

	// Code is the generated code along with its file name, dependencies and
	// extracted environment variables.
	Code = codegen.Code

	// Target is a supported (language, framework) pair.
	Target = codegen.Target

	// Request is the fully resolved request a curl command makes.
	Request = spec.Request
)

// DefaultOptions returns the default [Options], generating JavaScript using fetch.
func DefaultOptions() Options {
	return codegen.DefaultOptions()
}

// Supported returns the table of every supported target.
//
// The returned slice is a copy and may be freely modified.
func Supported() []Target {
	return codegen.Supported()
}

// Warning is a non-fatal problem found in a curl command, the conversion carries
// on regardless.
type Warning struct {
	// Msg describes the problem
	Msg string `json:"msg" toml:"msg" yaml:"msg"`

	// Position is the source position e.g. "input:1:12-20", empty if the
	// warning isn't about any particular part of the command
	Position string `json:"position,omitempty" toml:"position,omitempty" yaml:"position,omitempty"`
}

// String implements [fmt.Stringer] for a [Warning].
func (w Warning) String() string {
	if w.Position == "" {
		return w.Msg
	}

	return w.Position + ": " + w.Msg
}

// Header is a single request header as displayed in a [Summary].
type Header struct {
	Name  string `json:"name"  toml:"name"  yaml:"name"`
	Value string `json:"value" toml:"value" yaml:"value"`
}

// Summary is a display projection of the parsed request.
type Summary struct {
	// Method is the HTTP method
	Method string `json:"method" toml:"method" yaml:"method"`

	// URL is the full request URL
	URL string `json:"url" toml:"url" yaml:"url"`

	// Auth is the detected auth kind, one of none, basic or bearer
	Auth string `json:"auth" toml:"auth" yaml:"auth"`

	// Body is the detected body kind, one of none, json, form, multipart or raw
	Body string `json:"body" toml:"body" yaml:"body"`

	// ContentType is the effective content type of the body, if any
	ContentType string `json:"contentType,omitempty" toml:"contentType,omitempty" yaml:"contentType,omitempty"`

	// Headers are the request headers in the order given
	Headers []Header `json:"headers,omitempty" toml:"headers,omitempty" yaml:"headers,omitempty"`
}

// Summarise returns the display [Summary] of a request.
func Summarise(request Request) Summary {
	summary := Summary{
		Method:      request.Method,
		URL:         request.URL.String(),
		Auth:        request.Auth.Kind.String(),
		Body:        request.Body.Kind.String(),
		ContentType: request.Body.ContentType,
	}

	for _, header := range request.Headers {
		summary.Headers = append(summary.Headers, Header{Name: header.Name, Value: header.Value})
	}

	return summary
}

// Result is the outcome of a single conversion.
//
// Either Success is true and ParsedCurl and GeneratedCode are set, or it is false
// and only Error is set.
type Result struct {
	err error

	// ParsedCurl summarises the request the command makes
	ParsedCurl *Summary `json:"parsedCurl,omitempty" toml:"parsedCurl,omitempty" yaml:"parsedCurl,omitempty"`

	// GeneratedCode is the generated code
	GeneratedCode *Code `json:"generatedCode,omitempty" toml:"generatedCode,omitempty" yaml:"generatedCode,omitempty"`

	// Error describes why the conversion failed
	Error string `json:"error,omitempty" toml:"error,omitempty" yaml:"error,omitempty"`

	// Warnings are the non-fatal problems found in the command
	Warnings []Warning `json:"warnings,omitempty" toml:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Success reports whether the conversion succeeded
	Success bool `json:"success" toml:"success" yaml:"success"`
}

// Err returns the error the conversion failed with, or nil if it succeeded.
//
// The error is always one of [errs.ParseError], [errs.ConfigError] or
// [errs.GenerationError] and matches the corresponding sentinel with [errors.Is].
func (r Result) Err() error {
	return r.err
}

// failed returns the [Result] for a failed conversion.
func failed(err error) Result {
	return Result{
		Success: false,
		Error:   err.Error(),
		err:     err,
	}
}

// Convert converts a curl command into code, the convertCurlToCode operation.
//
// Convert never panics, every failure is reported in the returned [Result].
func Convert(text string, options Options) Result {
	return ConvertNamed(DefaultName, text, options)
}

// ConvertNamed is like [Convert] but names the input, the name is used in the
// positions of warnings and errors e.g. a file path.
func ConvertNamed(name, text string, options Options) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = failed(&errs.GenerationError{Cause: fmt.Errorf("%v", recovered)})
		}
	}()

	request, warnings, err := Parse(name, text)
	if err != nil {
		return failed(err)
	}

	return generate(request, warnings, options)
}

// ConvertRequest generates code for an already resolved request e.g. one read back
// from an exported JSON document, skipping the parse.
//
// Like [Convert] it never panics.
func ConvertRequest(request Request, options Options) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = failed(&errs.GenerationError{Cause: fmt.Errorf("%v", recovered)})
		}
	}()

	return generate(request, nil, options)
}

// generate assembles the [Result] for a request.
func generate(request Request, warnings []Warning, options Options) Result {
	code, err := codegen.Generate(request, options)
	if err != nil {
		return failed(err)
	}

	summary := Summarise(request)

	return Result{
		Success:       true,
		ParsedCurl:    &summary,
		GeneratedCode: &code,
		Warnings:      warnings,
	}
}

// Parse parses and resolves a curl command into its [Request] without generating
// any code.
//
// The error, if non-nil, is always an [errs.ParseError].
func Parse(name, text string) (Request, []Warning, error) {
	p := parser.New(name, []byte(text))

	cmd, err := p.Parse()
	if err != nil {
		return Request{}, nil, err
	}

	r := resolver.New(name, p.Source())
	request := r.Resolve(cmd)

	warnings := warningsFrom(p.Diagnostics())
	warnings = append(warnings, warningsFrom(r.Diagnostics())...)

	return request, warnings, nil
}

// warningsFrom converts syntax diagnostics to warnings.
func warningsFrom(diagnostics []syntax.Diagnostic) []Warning {
	if len(diagnostics) == 0 {
		return nil
	}

	warnings := make([]Warning, 0, len(diagnostics))
	for _, diagnostic := range diagnostics {
		warning := Warning{Msg: diagnostic.Msg}
		if diagnostic.Position.IsValid() {
			warning.Position = diagnostic.Position.String()
		}

		warnings = append(warnings, warning)
	}

	return warnings
}

// DetectAndNormalize cleans up pasted artifacts in text (smart quotes, prompts,
// code fences, line continuations and so on) and reports whether the result
// looks like a curl command.
//
// Text that is a curl invocation without the leading "curl" e.g. just flags and
// a URL is accepted and has it added. The boolean is false for empty text and
// for anything else, in which case the string is empty.
func DetectAndNormalize(text string) (string, bool) {
	normalised := strings.TrimSpace(scanner.Normalise(text))
	if normalised == "" {
		return "", false
	}

	first := strings.Trim(strings.Fields(normalised)[0], `"'`)

	switch {
	case first == "curl" || strings.HasSuffix(first, "/curl") || strings.EqualFold(first, "curl.exe"):
		return normalised, true
	case strings.HasPrefix(first, "-") || scanner.IsURL(first):
		return "curl " + normalised, true
	default:
		return "", false
	}
}
