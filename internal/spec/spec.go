// Package spec provides the Request type, the concrete, canonical, language neutral
// description of the HTTP request a curl command makes.
//
// Unlike the representations in the syntax package, the data structures here are
// complete and concrete, i.e. every semantic decision (the method, what kind of body
// is being sent, how the request is authenticated) has been made and the URL has been
// decomposed.
//
// Every code emitter consumes a Request, it is the single source of truth between
// parsing and generation.
package spec

import (
	"fmt"
	"strings"
)

// Request is a single HTTP request as a canonical, fully resolved representation.
type Request struct {
	// The HTTP method, always upper case
	Method string `json:"method" toml:"method" yaml:"method"`

	// The request URL, decomposed
	URL URL `json:"url" toml:"url" yaml:"url"`

	// Request headers, in the order they were given
	Headers Headers `json:"headers,omitempty" toml:"headers,omitempty" yaml:"headers,omitempty"`

	// How the request authenticates, if at all
	Auth Auth `json:"auth" toml:"auth" yaml:"auth"`

	// The request body
	Body Body `json:"body" toml:"body" yaml:"body"`

	// Transport level behaviour
	Flags Flags `json:"flags" toml:"flags" yaml:"flags"`
}

// Flags are the transport level settings of a [Request].
type Flags struct {
	// Cookies sent with the request, in order
	Cookies []Cookie `json:"cookies,omitempty" toml:"cookies,omitempty" yaml:"cookies,omitempty"`

	// User agent set with -A, empty if not set
	UserAgent string `json:"userAgent,omitempty" toml:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// File the response should be written to, set with -o
	Output string `json:"output,omitempty" toml:"output,omitempty" yaml:"output,omitempty"`

	// Overall request timeout in milliseconds, 0 means no timeout
	TimeoutMs int `json:"timeoutMs,omitempty" toml:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`

	// Connection timeout in milliseconds, 0 means no timeout
	ConnectTimeoutMs int `json:"connectTimeoutMs,omitempty" toml:"connectTimeoutMs,omitempty" yaml:"connectTimeoutMs,omitempty"`

	// Follow redirects (-L)
	FollowRedirects bool `json:"followRedirects,omitempty" toml:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`

	// Skip TLS certificate verification (-k)
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" toml:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// Ask for a compressed response (--compressed)
	Compressed bool `json:"compressed,omitempty" toml:"compressed,omitempty" yaml:"compressed,omitempty"`
}

// Cookie is a single name=value cookie.
type Cookie struct {
	Name  string `json:"name"  toml:"name"  yaml:"name"`
	Value string `json:"value" toml:"value" yaml:"value"`
}

// CookieHeader renders cookies as the value of a Cookie header.
func CookieHeader(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		parts = append(parts, cookie.Name+"="+cookie.Value)
	}

	return strings.Join(parts, "; ")
}

// String implements [fmt.Stringer] for a [Request], giving a short one line
// summary e.g. "POST https://api.example.com/items (json body, bearer auth)".
func (r Request) String() string {
	var details []string

	if r.Body.Kind != BodyNone {
		details = append(details, r.Body.Kind.String()+" body")
	}

	if r.Auth.Kind != AuthNone {
		details = append(details, r.Auth.Kind.String()+" auth")
	}

	if len(details) == 0 {
		return fmt.Sprintf("%s %s", r.Method, r.URL)
	}

	return fmt.Sprintf("%s %s (%s)", r.Method, r.URL, strings.Join(details, ", "))
}
