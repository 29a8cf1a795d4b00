package spec

import (
	"fmt"
	"strings"
)

// BodyKind is the kind of a request body.
type BodyKind int

// Body kinds.
const (
	BodyNone      BodyKind = iota // none
	BodyJSON                      // json
	BodyForm                      // form
	BodyMultipart                 // multipart
	BodyRaw                       // raw
)

// String implements [fmt.Stringer] for [BodyKind].
func (k BodyKind) String() string {
	switch k {
	case BodyNone:
		return "none"
	case BodyJSON:
		return "json"
	case BodyForm:
		return "form"
	case BodyMultipart:
		return "multipart"
	case BodyRaw:
		return "raw"
	default:
		return fmt.Sprintf("BodyKind(%d)", int(k))
	}
}

// MarshalText implements [encoding.TextMarshaler] for [BodyKind].
func (k BodyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] for [BodyKind].
func (k *BodyKind) UnmarshalText(text []byte) error {
	for kind := BodyNone; kind <= BodyRaw; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}

	return fmt.Errorf("unknown body kind %q", text)
}

// Body is a HTTP request body.
type Body struct {
	// Payload is the body text for JSON, form and raw bodies
	Payload string `json:"payload,omitempty" toml:"payload,omitempty" yaml:"payload,omitempty"`

	// File is the path of a file the body is read from (-d @file), Payload
	// is empty when it is set
	File string `json:"file,omitempty" toml:"file,omitempty" yaml:"file,omitempty"`

	// ContentType is the effective content type of the body, empty for no body
	ContentType string `json:"contentType,omitempty" toml:"contentType,omitempty" yaml:"contentType,omitempty"`

	// Fields are the decoded fields of a form or multipart body, in order
	Fields []Field `json:"fields,omitempty" toml:"fields,omitempty" yaml:"fields,omitempty"`

	// Kind is what sort of body this is
	Kind BodyKind `json:"kind" toml:"kind" yaml:"kind"`
}

// Field is a single form or multipart field.
type Field struct {
	// Name of the field
	Name string `json:"name" toml:"name" yaml:"name"`

	// Value of the field, or the file path if File is true
	Value string `json:"value" toml:"value" yaml:"value"`

	// ContentType of a multipart part if given with ";type="
	ContentType string `json:"contentType,omitempty" toml:"contentType,omitempty" yaml:"contentType,omitempty"`

	// File reports whether the field is a file upload (-F name=@path)
	File bool `json:"file,omitempty" toml:"file,omitempty" yaml:"file,omitempty"`
}

// ParseForm decodes a urlencoded form payload into ordered fields.
func ParseForm(payload string) []Field {
	params := ParseQuery(strings.TrimSpace(payload))

	fields := make([]Field, 0, len(params))
	for _, param := range params {
		fields = append(fields, Field{Name: param.Name, Value: param.Value})
	}

	return fields
}
