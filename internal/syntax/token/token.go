// Package token provides the set of lexical tokens for a curl command line.
package token

import (
	"fmt"
	"slices"
)

// Token is a lexical token in a curl command line.
//
// Because the shell removes quotes and processes escapes before curl ever sees
// its arguments, the text a token stands for is not a simple slice of the source.
// Value holds the word exactly as curl would receive it, while Start and End
// record where it came from for error reporting.
type Token struct {
	Value string // The shell-processed text of the token
	Kind  Kind   // The kind of token this is
	Start int    // Byte offset from the start of the input to the start of this token
	End   int    // Byte offset from the start of the input to the end of this token
}

// String implement [fmt.Stringer] for a [Token].
func (t Token) String() string {
	return fmt.Sprintf("<Token::%s start=%d, end=%d, value=%q>", t.Kind, t.Start, t.End, t.Value)
}

// Is reports whether the token is any of the provided [Kind]s.
func (t Token) Is(kinds ...Kind) bool {
	return slices.Contains(kinds, t.Kind)
}
