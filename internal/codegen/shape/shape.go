// Package shape parses JSON documents preserving key order and infers the types
// needed to model them in a statically typed language.
package shape

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/naming"
)

// Kind is the kind of a JSON value.
type Kind int

// JSON value kinds.
const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// String implements [fmt.Stringer] for [Kind].
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is a parsed JSON value.
type Node struct {
	// Value is the text of a scalar: the decoded string, the number exactly as
	// written, "true" or "false"
	Value string

	// Fields are the members of an object, in document order
	Fields []Field

	// Items are the elements of an array
	Items []*Node

	// Kind is the kind of JSON value
	Kind Kind
}

// Field is a single member of a JSON object.
type Field struct {
	Value *Node
	Key   string
}

// Get returns the value of the field with the given key, or nil.
func (n *Node) Get(key string) *Node {
	for _, field := range n.Fields {
		if field.Key == key {
			return field.Value
		}
	}

	return nil
}

// IsInteger reports whether the node is a number with no fraction or exponent.
func (n *Node) IsInteger() bool {
	if n.Kind != Number {
		return false
	}

	_, err := strconv.ParseInt(n.Value, 10, 64)

	return err == nil
}

// Parse parses a single JSON document.
func Parse(text string) (*Node, error) {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	node, err := parseValue(decoder)
	if err != nil {
		return nil, err
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON: unexpected data after top level value")
	}

	return node, nil
}

// parseValue parses the next value from decoder.
func parseValue(decoder *json.Decoder) (*Node, error) {
	tok, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch value := tok.(type) {
	case json.Delim:
		switch value {
		case '{':
			return parseObject(decoder)
		case '[':
			return parseArray(decoder)
		default:
			return nil, fmt.Errorf("invalid JSON: unexpected %q", value)
		}
	case nil:
		return &Node{Kind: Null, Value: "null"}, nil
	case bool:
		return &Node{Kind: Bool, Value: strconv.FormatBool(value)}, nil
	case json.Number:
		return &Node{Kind: Number, Value: value.String()}, nil
	case string:
		return &Node{Kind: String, Value: value}, nil
	default:
		return nil, fmt.Errorf("invalid JSON: unexpected token %v", tok)
	}
}

// parseObject parses the remainder of an object after its opening brace.
func parseObject(decoder *json.Decoder) (*Node, error) {
	node := &Node{Kind: Object}

	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("invalid JSON: object key %v is not a string", tok)
		}

		value, err := parseValue(decoder)
		if err != nil {
			return nil, err
		}

		node.Fields = append(node.Fields, Field{Key: key, Value: value})
	}

	// Closing brace
	if _, err := decoder.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return node, nil
}

// parseArray parses the remainder of an array after its opening bracket.
func parseArray(decoder *json.Decoder) (*Node, error) {
	node := &Node{Kind: Array}

	for decoder.More() {
		item, err := parseValue(decoder)
		if err != nil {
			return nil, err
		}

		node.Items = append(node.Items, item)
	}

	// Closing bracket
	if _, err := decoder.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return node, nil
}

// Compact returns the JSON text of node with no insignificant whitespace.
func Compact(node *Node) string {
	buf := &bytes.Buffer{}
	writeCompact(buf, node)

	return buf.String()
}

// writeCompact writes node to buf as compact JSON.
func writeCompact(buf *bytes.Buffer, node *Node) {
	switch node.Kind {
	case Object:
		buf.WriteByte('{')

		for i, field := range node.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}

			buf.WriteString(Quote(field.Key))
			buf.WriteByte(':')
			writeCompact(buf, field.Value)
		}

		buf.WriteByte('}')
	case Array:
		buf.WriteByte('[')

		for i, item := range node.Items {
			if i > 0 {
				buf.WriteByte(',')
			}

			writeCompact(buf, item)
		}

		buf.WriteByte(']')
	case String:
		buf.WriteString(Quote(node.Value))
	default:
		buf.WriteString(node.Value)
	}
}

// Indent returns the JSON text of node indented with indent, one member per line.
func Indent(node *Node, indent string) string {
	buf := &bytes.Buffer{}
	if err := json.Indent(buf, []byte(Compact(node)), "", indent); err != nil {
		return Compact(node)
	}

	return buf.String()
}

// Quote returns s as a JSON string literal, without escaping HTML characters.
func Quote(s string) string {
	buf := &bytes.Buffer{}

	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(s); err != nil {
		return strconv.Quote(s)
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// TypeName returns the name a nested object stored under key should be given.
func TypeName(key string) string {
	name := naming.Pascal(key)
	if name == "" {
		return "Item"
	}

	return naming.Identifier(name, "T")
}
