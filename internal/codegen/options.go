package codegen

import (
	"fmt"
	"slices"

	"go.followtheprocess.codes/uncurl/internal/errs"
)

// ErrorHandling is the error handling strategy wrapped around generated code.
type ErrorHandling string

// Error handling strategies.
const (
	// ErrorHandlingNone generates no status checks and no try/catch equivalent.
	ErrorHandlingNone ErrorHandling = "none"

	// ErrorHandlingBasic checks the response status and wraps the request in a
	// single try/catch equivalent that reports the failure.
	ErrorHandlingBasic ErrorHandling = "basic"

	// ErrorHandlingComprehensive declares typed errors, distinguishes client and
	// server errors by status and handles network failures separately.
	ErrorHandlingComprehensive ErrorHandling = "comprehensive"
)

// IndentType is the character generated code is indented with.
type IndentType string

// Indent types.
const (
	IndentSpaces IndentType = "spaces"
	IndentTabs   IndentType = "tabs"
)

// Bounds on numeric options.
const (
	MinIndentSize = 1
	MaxIndentSize = 8
)

// Options control how code is generated.
type Options struct {
	// Language is the target language e.g. "python"
	Language string `json:"language" toml:"language" yaml:"language"`

	// Framework is the HTTP library to use e.g. "requests", empty selects the
	// language's first framework. It must belong to Language, see [Options.WithLanguage]
	Framework string `json:"framework" toml:"framework" yaml:"framework"`

	// ErrorHandling is the error handling strategy
	ErrorHandling ErrorHandling `json:"errorHandling" toml:"errorHandling" yaml:"errorHandling"`

	// IndentType is whether to indent with spaces or tabs, Go is always gofmt'd
	// with tabs regardless
	IndentType IndentType `json:"indentType" toml:"indentType" yaml:"indentType"`

	// RetryAttempts is the number of attempts made when RetryLogic is set
	RetryAttempts int `json:"retryAttempts" toml:"retryAttempts" yaml:"retryAttempts"`

	// IndentSize is the number of spaces per indent level, ignored for Go
	IndentSize int `json:"indentSize" toml:"indentSize" yaml:"indentSize"`

	// Timeout is the default request timeout in milliseconds, used when the
	// command doesn't set one, 0 disables it
	Timeout int `json:"timeout" toml:"timeout" yaml:"timeout"`

	// Async selects an asynchronous client API where the target has one
	Async bool `json:"async" toml:"async" yaml:"async"`

	// ExtractEnvVars moves secrets into environment variables
	ExtractEnvVars bool `json:"extractEnvVars" toml:"extractEnvVars" yaml:"extractEnvVars"`

	// IncludeTypes generates model types for the request body
	IncludeTypes bool `json:"includeTypes" toml:"includeTypes" yaml:"includeTypes"`

	// RetryLogic retries failed requests with exponential backoff
	RetryLogic bool `json:"retryLogic" toml:"retryLogic" yaml:"retryLogic"`

	// IncludeLogging logs the request and response
	IncludeLogging bool `json:"includeLogging" toml:"includeLogging" yaml:"includeLogging"`

	// IncludeComments keeps explanatory comments in the generated code
	IncludeComments bool `json:"includeComments" toml:"includeComments" yaml:"includeComments"`

	// ValidateSSL verifies TLS certificates, curl's -k turns this off regardless
	ValidateSSL bool `json:"validateSSL" toml:"validateSSL" yaml:"validateSSL"`

	// IncludeTests generates a test file alongside the code
	IncludeTests bool `json:"includeTests" toml:"includeTests" yaml:"includeTests"`
}

// DefaultOptions returns the default [Options].
func DefaultOptions() Options {
	return Options{
		Language:        "javascript",
		Framework:       "fetch",
		ErrorHandling:   ErrorHandlingBasic,
		Async:           true,
		ExtractEnvVars:  true,
		IncludeTypes:    true,
		RetryLogic:      false,
		RetryAttempts:   3,
		IncludeLogging:  false,
		IncludeComments: true,
		IndentSize:      2,
		IndentType:      IndentSpaces,
		Timeout:         30000,
		ValidateSSL:     true,
		IncludeTests:    false,
	}
}

// WithLanguage returns a copy of o targeting language with its first framework.
//
// The framework is cleared as it belongs to the previous language, setting
// Language directly on [DefaultOptions] would otherwise leave "fetch" in place.
func (o Options) WithLanguage(language string) Options {
	o.Language = language
	o.Framework = ""

	return o
}

// Validate checks the options are within their allowed ranges, returning an
// [errs.ConfigError] if not.
//
// Validate does not check the language and framework, see [Lookup].
func (o Options) Validate() error {
	strategies := []ErrorHandling{ErrorHandlingNone, ErrorHandlingBasic, ErrorHandlingComprehensive}
	if !slices.Contains(strategies, o.ErrorHandling) {
		return invalid(string(o.ErrorHandling), "errorHandling must be one of none, basic or comprehensive, got %q", o.ErrorHandling)
	}

	if o.IndentType != IndentSpaces && o.IndentType != IndentTabs {
		return invalid(string(o.IndentType), "indentType must be spaces or tabs, got %q", o.IndentType)
	}

	if o.IndentSize < MinIndentSize || o.IndentSize > MaxIndentSize {
		return invalid(fmt.Sprint(o.IndentSize), "indentSize must be between %d and %d, got %d", MinIndentSize, MaxIndentSize, o.IndentSize)
	}

	if o.RetryAttempts < 0 {
		return invalid(fmt.Sprint(o.RetryAttempts), "retryAttempts cannot be negative, got %d", o.RetryAttempts)
	}

	if o.Timeout < 0 {
		return invalid(fmt.Sprint(o.Timeout), "timeout cannot be negative, got %d", o.Timeout)
	}

	return nil
}

// degrade returns a copy of o with every option the capabilities don't support
// turned off.
func (o Options) degrade(caps Capabilities) Options {
	if !caps.Async {
		o.Async = false
	}

	if !caps.Types {
		o.IncludeTypes = false
	}

	if !caps.Retry {
		o.RetryLogic = false
	}

	if !caps.Logging {
		o.IncludeLogging = false
	}

	if !caps.Tests {
		o.IncludeTests = false
	}

	if o.RetryAttempts < 1 {
		o.RetryLogic = false
	}

	return o
}

// invalid returns an [errs.ConfigError] for an invalid option.
func invalid(value, format string, a ...any) error {
	return &errs.ConfigError{
		Kind:  errs.InvalidOption,
		Value: value,
		Msg:   fmt.Sprintf(format, a...),
	}
}
