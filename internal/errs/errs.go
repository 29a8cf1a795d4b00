// Package errs provides the structured error types returned when converting
// a curl command into code.
//
// Every error produced by the conversion pipeline is one of [ParseError], [ConfigError]
// or [GenerationError], each of which matches its sentinel with [errors.Is] so callers
// can branch on the category without a type assertion:
//
//	if errors.Is(err, errs.ErrParse) {
//	    // The curl command itself was malformed
//	}
//
// Use [errors.As] to get at the kind and position information.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrParse indicates the curl command could not be tokenised or parsed.
	ErrParse = errors.New("parse error")

	// ErrConfig indicates invalid code generation options.
	ErrConfig = errors.New("configuration error")

	// ErrGeneration indicates an emitter failed on a well formed request, this
	// is always a bug in the emitter.
	ErrGeneration = errors.New("generation error")
)

// ParseErrorKind is the category of a [ParseError].
type ParseErrorKind int

const (
	// UnterminatedQuote means a single or double quote was opened but never closed.
	UnterminatedQuote ParseErrorKind = iota

	// EmptyInput means the input was empty or entirely whitespace.
	EmptyInput

	// MissingFlagValue means a flag that requires an argument was the last token.
	MissingFlagValue

	// SizeLimitExceeded means the input was larger than the maximum accepted size.
	SizeLimitExceeded
)

// String implements [fmt.Stringer] for [ParseErrorKind].
func (k ParseErrorKind) String() string {
	switch k {
	case UnterminatedQuote:
		return "UnterminatedQuote"
	case EmptyInput:
		return "EmptyInput"
	case MissingFlagValue:
		return "MissingFlagValue"
	case SizeLimitExceeded:
		return "SizeLimitExceeded"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

// ParseError is a failure to tokenise or parse a curl command.
type ParseError struct {
	// Position is the human readable source position e.g. "stdin:1:12", empty
	// if not applicable (EmptyInput, SizeLimitExceeded).
	Position string

	// Flag is the offending flag for MissingFlagValue, as written by the user.
	Flag string

	// Msg describes the failure.
	Msg string

	// Kind is the category of the failure.
	Kind ParseErrorKind

	// Offset is the byte offset into the (normalised) input at which the error
	// occurred, -1 if not applicable.
	Offset int
}

// Error implements the error interface for [ParseError].
func (e *ParseError) Error() string {
	msg := ErrParse.Error()
	if e.Position != "" {
		msg += " at " + e.Position
	}

	if e.Msg != "" {
		msg += ": " + e.Msg
	}

	return msg
}

// Is reports whether target is [ErrParse].
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ConfigErrorKind is the category of a [ConfigError].
type ConfigErrorKind int

const (
	// UnsupportedLanguage means the requested language has no emitters.
	UnsupportedLanguage ConfigErrorKind = iota

	// UnsupportedFramework means the language is known but the framework is not.
	UnsupportedFramework

	// InvalidOption means a generation option was out of its allowed range.
	InvalidOption
)

// String implements [fmt.Stringer] for [ConfigErrorKind].
func (k ConfigErrorKind) String() string {
	switch k {
	case UnsupportedLanguage:
		return "UnsupportedLanguage"
	case UnsupportedFramework:
		return "UnsupportedFramework"
	case InvalidOption:
		return "InvalidOption"
	default:
		return fmt.Sprintf("ConfigErrorKind(%d)", int(k))
	}
}

// ConfigError is a failure caused by invalid generation options.
type ConfigError struct {
	// Value is the offending value e.g. the unknown language name.
	Value string

	// Msg describes the failure.
	Msg string

	// Kind is the category of the failure.
	Kind ConfigErrorKind
}

// Error implements the error interface for [ConfigError].
func (e *ConfigError) Error() string {
	msg := ErrConfig.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}

	return msg
}

// Is reports whether target is [ErrConfig].
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// GenerationError is an internal failure in an emitter.
type GenerationError struct {
	// Cause is the underlying error or recovered panic value.
	Cause error

	// Target is the "language/framework" pair that failed.
	Target string
}

// Error implements the error interface for [GenerationError].
func (e *GenerationError) Error() string {
	msg := ErrGeneration.Error()
	if e.Target != "" {
		msg += " in " + e.Target
	}

	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is [ErrGeneration].
func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}
