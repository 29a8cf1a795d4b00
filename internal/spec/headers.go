package spec

import (
	"strings"
)

// Header is a single HTTP header.
type Header struct {
	Name  string `json:"name"  toml:"name"  yaml:"name"`
	Value string `json:"value" toml:"value" yaml:"value"`
}

// Headers is an ordered, case-insensitively keyed collection of HTTP headers.
//
// Names keep the casing they were first given with, setting a header that
// already exists replaces its value in place.
type Headers []Header

// Get returns the value of the named header and whether it was present.
func (h Headers) Get(name string) (string, bool) {
	if i := h.index(name); i != -1 {
		return h[i].Value, true
	}

	return "", false
}

// Has reports whether the named header is present.
func (h Headers) Has(name string) bool {
	return h.index(name) != -1
}

// Set sets the named header to value, replacing any existing value but
// keeping its original position and casing.
func (h *Headers) Set(name, value string) {
	if i := h.index(name); i != -1 {
		(*h)[i].Value = value
		return
	}

	*h = append(*h, Header{Name: name, Value: value})
}

// Del removes the named header, it is a no-op if not present.
func (h *Headers) Del(name string) {
	if i := h.index(name); i != -1 {
		*h = append((*h)[:i], (*h)[i+1:]...)
	}
}

// index returns the index of the named header, or -1.
func (h Headers) index(name string) int {
	for i, header := range h {
		if strings.EqualFold(header.Name, name) {
			return i
		}
	}

	return -1
}
