// Package ast defines the raw, unresolved form of a parsed curl command.
//
// A [Command] is the result of folding every recognised flag into a single structure
// in the order they appeared on the command line. No semantic decisions (which method
// to use, what kind of body this is etc.) have been made yet, that is the job of the
// resolver.
package ast

import (
	"go.followtheprocess.codes/uncurl/internal/syntax/token"
)

// Arg is a single argument to a curl flag, or a positional argument.
type Arg struct {
	// Flag is the token for the flag this argument was passed to, for
	// positional arguments it is the zero token.
	Flag token.Token

	// Value is the token holding the argument itself.
	//
	// For boolean flags it is the zero token.
	Value token.Token
}

// Text returns the shell-processed text of the argument.
func (a Arg) Text() string {
	return a.Value.Value
}

// Start returns the byte offset of the start of the argument, including its flag.
func (a Arg) Start() int {
	if a.Flag.Kind == token.Flag {
		return a.Flag.Start
	}

	return a.Value.Start
}

// End returns the byte offset of the end of the argument.
func (a Arg) End() int {
	return max(a.Value.End, a.Flag.End)
}

// DataKind is the flavour of data flag that contributed to a request body.
type DataKind int

// Data flag kinds.
const (
	DataASCII     DataKind = iota // -d, --data, --data-ascii
	DataRaw                       // --data-raw
	DataBinary                    // --data-binary
	DataURLEncode                 // --data-urlencode
	DataJSON                      // --json
)

// String returns the long flag name (without dashes) for the [DataKind].
func (d DataKind) String() string {
	switch d {
	case DataASCII:
		return "data"
	case DataRaw:
		return "data-raw"
	case DataBinary:
		return "data-binary"
	case DataURLEncode:
		return "data-urlencode"
	case DataJSON:
		return "json"
	default:
		return "data"
	}
}

// Body is the request payload accumulated from every data flag.
type Body struct {
	// Payload is the accumulated payload text.
	Payload string

	// File is the path of a file referenced with '@', in which case
	// Payload is empty.
	File string

	// Parts are the flags that contributed to the payload, in order.
	Parts []Arg

	// Kind is the kind of the flag that most recently reset the payload.
	Kind DataKind
}

// IsEmpty reports whether no data flags were given at all.
func (b Body) IsEmpty() bool {
	return len(b.Parts) == 0
}

// Command is a curl invocation with every flag folded in.
type Command struct {
	// URL is the URL the request is sent to, nil if there wasn't one.
	URL *Arg

	// Method is an explicit -X/--request argument.
	Method *Arg

	// User is the -u/--user argument, "user:password".
	User *Arg

	// Bearer is the --oauth2-bearer token.
	Bearer *Arg

	// UserAgent is the -A/--user-agent argument.
	UserAgent *Arg

	// Referer is the -e/--referer argument.
	Referer *Arg

	// MaxTime is the -m/--max-time argument in (possibly fractional) seconds.
	MaxTime *Arg

	// ConnectTimeout is the --connect-timeout argument in (possibly fractional) seconds.
	ConnectTimeout *Arg

	// Output is the -o/--output argument.
	Output *Arg

	// Name is the name of the input the command was parsed from.
	Name string

	// URLs are every URL candidate (positional or --url) in the order they
	// appeared, URL is chosen from these.
	URLs []Arg

	// Headers are the raw "Name: value" -H/--header arguments, in order.
	Headers []Arg

	// Form are the raw "name=value" -F/--form arguments, in order.
	Form []Arg

	// Cookies are the raw -b/--cookie arguments, in order.
	Cookies []Arg

	// Ignored are recognised flags that have no bearing on generated code
	// e.g. --silent.
	Ignored []Arg

	// Body is the payload accumulated from all the data flags.
	Body Body

	// Insecure is set by -k/--insecure.
	Insecure bool

	// Compressed is set by --compressed.
	Compressed bool

	// Location is set by -L/--location.
	Location bool

	// Get is set by -G/--get, it moves data into the query string.
	Get bool

	// Head is set by -I/--head.
	Head bool

	// JSON is set by --json.
	JSON bool
}
