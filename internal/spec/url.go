package spec

import (
	"fmt"
	"net/url"
	"strings"
)

// URL is a decomposed request URL.
type URL struct {
	// Raw is the URL exactly as written in the curl command
	Raw string `json:"raw" toml:"raw" yaml:"raw"`

	// Scheme e.g. "https"
	Scheme string `json:"scheme" toml:"scheme" yaml:"scheme"`

	// Username from the URL's userinfo, if any
	Username string `json:"username,omitempty" toml:"username,omitempty" yaml:"username,omitempty"`

	// Password from the URL's userinfo, if any
	Password string `json:"password,omitempty" toml:"password,omitempty" yaml:"password,omitempty"`

	// Host including the port if given e.g. "localhost:8080"
	Host string `json:"host" toml:"host" yaml:"host"`

	// Path, percent encoded as given
	Path string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"`

	// Fragment, without the leading '#'
	Fragment string `json:"fragment,omitempty" toml:"fragment,omitempty" yaml:"fragment,omitempty"`

	// Query parameters, decoded and in order
	Query []QueryParam `json:"query,omitempty" toml:"query,omitempty" yaml:"query,omitempty"`
}

// QueryParam is a single decoded query parameter.
type QueryParam struct {
	Name  string `json:"name"  toml:"name"  yaml:"name"`
	Value string `json:"value" toml:"value" yaml:"value"`
}

// ParseURL decomposes raw into a [URL].
//
// A URL without a scheme is assumed to be http, like curl does. Query parameter order
// is preserved, and parameters without an '=' are kept with an empty value.
func ParseURL(raw string) (URL, error) {
	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = "http://" + raw
	}

	parsed, err := url.Parse(withScheme)
	if err != nil {
		return URL{Raw: raw}, fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	u := URL{
		Raw:      raw,
		Scheme:   parsed.Scheme,
		Host:     parsed.Host,
		Path:     parsed.EscapedPath(),
		Fragment: parsed.Fragment,
		Query:    ParseQuery(parsed.RawQuery),
	}

	if parsed.User != nil {
		u.Username = parsed.User.Username()
		u.Password, _ = parsed.User.Password()
	}

	return u, nil
}

// ParseQuery decodes a raw query string into ordered parameters.
func ParseQuery(raw string) []QueryParam {
	if raw == "" {
		return nil
	}

	var params []QueryParam

	for pair := range strings.SplitSeq(raw, "&") {
		if pair == "" {
			continue
		}

		name, value, _ := strings.Cut(pair, "=")
		params = append(params, QueryParam{Name: unescape(name), Value: unescape(value)})
	}

	return params
}

// Base returns the URL without its query string or fragment.
func (u URL) Base() string {
	var b strings.Builder

	b.WriteString(u.Scheme)
	b.WriteString("://")

	switch {
	case u.Password != "":
		b.WriteString(url.UserPassword(u.Username, u.Password).String())
		b.WriteByte('@')
	case u.Username != "":
		b.WriteString(url.User(u.Username).String())
		b.WriteByte('@')
	}

	b.WriteString(u.Host)
	b.WriteString(u.Path)

	return b.String()
}

// String returns the full URL, re-encoded from its components.
func (u URL) String() string {
	if u.Host == "" && u.Scheme == "" {
		return u.Raw
	}

	s := u.Base()

	if len(u.Query) != 0 {
		s += "?" + EncodeQuery(u.Query)
	}

	if u.Fragment != "" {
		s += "#" + u.Fragment
	}

	return s
}

// EncodeQuery encodes params in order as a query string, spaces are
// encoded as %20.
func EncodeQuery(params []QueryParam) string {
	pairs := make([]string, 0, len(params))
	for _, param := range params {
		pairs = append(pairs, Escape(param.Name)+"="+Escape(param.Value))
	}

	return strings.Join(pairs, "&")
}

// Escape percent encodes s for use in a query string or form body, with
// spaces as %20.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// unescape decodes a query component, returning it unchanged if it isn't
// validly encoded.
func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}

	return decoded
}
