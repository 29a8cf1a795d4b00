package spec

import (
	"fmt"
)

// AuthKind is the authentication scheme a request uses.
type AuthKind int

// Auth kinds.
const (
	AuthNone   AuthKind = iota // none
	AuthBasic                  // basic
	AuthBearer                 // bearer
)

// String implements [fmt.Stringer] for [AuthKind].
func (k AuthKind) String() string {
	switch k {
	case AuthNone:
		return "none"
	case AuthBasic:
		return "basic"
	case AuthBearer:
		return "bearer"
	default:
		return fmt.Sprintf("AuthKind(%d)", int(k))
	}
}

// MarshalText implements [encoding.TextMarshaler] for [AuthKind].
func (k AuthKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] for [AuthKind].
func (k *AuthKind) UnmarshalText(text []byte) error {
	for kind := AuthNone; kind <= AuthBearer; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}

	return fmt.Errorf("unknown auth kind %q", text)
}

// Auth describes how a request authenticates.
//
// Bearer tokens always also appear as an Authorization header on the request, so
// emitters only need to treat basic auth specially. Basic auth that came from an
// explicit Authorization header has FromHeader set and is likewise already present
// as a header.
type Auth struct {
	// Username for basic auth
	Username string `json:"username,omitempty" toml:"username,omitempty" yaml:"username,omitempty"`

	// Password for basic auth
	Password string `json:"password,omitempty" toml:"password,omitempty" yaml:"password,omitempty"`

	// Token for bearer auth
	Token string `json:"token,omitempty" toml:"token,omitempty" yaml:"token,omitempty"`

	// Kind is the authentication scheme
	Kind AuthKind `json:"kind" toml:"kind" yaml:"kind"`

	// FromHeader reports whether the credentials came from an explicit
	// Authorization header
	FromHeader bool `json:"fromHeader,omitempty" toml:"fromHeader,omitempty" yaml:"fromHeader,omitempty"`
}

// NativeBasic reports whether the request uses basic auth that the emitter
// must render itself, rather than it already being present as a header.
func (a Auth) NativeBasic() bool {
	return a.Kind == AuthBasic && !a.FromHeader
}
