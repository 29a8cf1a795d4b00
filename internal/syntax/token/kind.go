package token

// Kind is the kind of a token.
type Kind int

// Token definitions.
//
//go:generate stringer -type Kind -linecomment
const (
	EOF   Kind = iota // EOF
	Error             // Error
	Flag              // Flag
	Value             // Value
	URL               // URL
	Bare              // Bare
)

// MarshalText implements [encoding.TextMarshaler] for [Kind].
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
