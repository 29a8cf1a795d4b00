package format

import (
	"encoding/json"
	"io"
	"net"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/spec"
)

// postmanSchema is the schema URL of a Postman v2.1 collection.
const postmanSchema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// Postman body modes.
const (
	modeRaw        = "raw"
	modeURLEncoded = "urlencoded"
	modeFormData   = "formdata"
	modeFile       = "file"
)

type postmanCollection struct {
	Info postmanInfo   `json:"info"`
	Item []postmanItem `json:"item"`
}

type postmanInfo struct {
	Name   string `json:"name"`
	Schema string `json:"schema"`
}

type postmanItem struct {
	Name    string         `json:"name"`
	Request postmanRequest `json:"request"`
}

type postmanRequest struct {
	Auth   *postmanAuth `json:"auth,omitempty"`
	Body   *postmanBody `json:"body,omitempty"`
	Method string       `json:"method"`
	URL    postmanURL   `json:"url"`
	Header []postmanKV  `json:"header"`
}

type postmanKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
	Src   string `json:"src,omitempty"`
}

type postmanAuth struct {
	Type   string      `json:"type"`
	Basic  []postmanKV `json:"basic,omitempty"`
	Bearer []postmanKV `json:"bearer,omitempty"`
}

type postmanBody struct {
	File       *postmanFile    `json:"file,omitempty"`
	Options    *postmanOptions `json:"options,omitempty"`
	Mode       string          `json:"mode"`
	Raw        string          `json:"raw,omitempty"`
	URLEncoded []postmanKV     `json:"urlencoded,omitempty"`
	FormData   []postmanKV     `json:"formdata,omitempty"`
}

type postmanFile struct {
	Src string `json:"src"`
}

type postmanOptions struct {
	Raw postmanRawOptions `json:"raw"`
}

type postmanRawOptions struct {
	Language string `json:"language"`
}

type postmanURL struct {
	Raw      string      `json:"raw"`
	Protocol string      `json:"protocol,omitempty"`
	Port     string      `json:"port,omitempty"`
	Hash     string      `json:"hash,omitempty"`
	Host     []string    `json:"host,omitempty"`
	Path     []string    `json:"path,omitempty"`
	Query    []postmanKV `json:"query,omitempty"`
}

// PostmanExporter is an [Exporter] that transforms a request into a Postman v2.1
// collection containing it as the only item.
type PostmanExporter struct{}

// Export implements [Exporter] for [PostmanExporter].
func (p PostmanExporter) Export(w io.Writer, request spec.Request) error {
	name := request.Method + " " + request.URL.Path
	if request.URL.Path == "" {
		name = request.Method + " " + request.URL.Host
	}

	collection := postmanCollection{
		Info: postmanInfo{Name: name, Schema: postmanSchema},
		Item: []postmanItem{
			{
				Name:    name,
				Request: postmanRequestFor(request),
			},
		},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(collection)
}

// postmanRequestFor builds the Postman request.
func postmanRequestFor(request spec.Request) postmanRequest {
	out := postmanRequest{
		Method: request.Method,
		URL:    postmanURLFor(request.URL),
		Header: []postmanKV{},
	}

	for _, header := range request.Headers {
		// Postman renders bearer auth itself
		if request.Auth.Kind == spec.AuthBearer && strings.EqualFold(header.Name, "Authorization") {
			continue
		}

		out.Header = append(out.Header, postmanKV{Key: header.Name, Value: header.Value})
	}

	if ua := request.Flags.UserAgent; ua != "" && !request.Headers.Has("User-Agent") {
		out.Header = append(out.Header, postmanKV{Key: "User-Agent", Value: ua})
	}

	if cookies := request.Flags.Cookies; len(cookies) != 0 && !request.Headers.Has("Cookie") {
		out.Header = append(out.Header, postmanKV{Key: "Cookie", Value: spec.CookieHeader(cookies)})
	}

	switch {
	case request.Auth.NativeBasic():
		out.Auth = &postmanAuth{
			Type: "basic",
			Basic: []postmanKV{
				{Key: "username", Value: request.Auth.Username, Type: "string"},
				{Key: "password", Value: request.Auth.Password, Type: "string"},
			},
		}
	case request.Auth.Kind == spec.AuthBearer:
		out.Auth = &postmanAuth{
			Type:   "bearer",
			Bearer: []postmanKV{{Key: "token", Value: request.Auth.Token, Type: "string"}},
		}
	}

	out.Body = postmanBodyFor(request.Body)

	return out
}

// postmanBodyFor builds the Postman body, nil if there isn't one.
func postmanBodyFor(body spec.Body) *postmanBody {
	switch {
	case body.File != "":
		return &postmanBody{Mode: modeFile, File: &postmanFile{Src: body.File}}
	case body.Kind == spec.BodyNone:
		return nil
	case body.Kind == spec.BodyMultipart:
		out := &postmanBody{Mode: modeFormData}

		for _, field := range body.Fields {
			if field.File {
				out.FormData = append(out.FormData, postmanKV{Key: field.Name, Type: "file", Src: field.Value})
				continue
			}

			out.FormData = append(out.FormData, postmanKV{Key: field.Name, Value: field.Value, Type: "text"})
		}

		return out
	case body.Kind == spec.BodyForm && len(body.Fields) != 0:
		out := &postmanBody{Mode: modeURLEncoded}
		for _, field := range body.Fields {
			out.URLEncoded = append(out.URLEncoded, postmanKV{Key: field.Name, Value: field.Value})
		}

		return out
	case body.Kind == spec.BodyJSON:
		return &postmanBody{
			Mode:    modeRaw,
			Raw:     body.Payload,
			Options: &postmanOptions{Raw: postmanRawOptions{Language: "json"}},
		}
	default:
		return &postmanBody{Mode: modeRaw, Raw: body.Payload}
	}
}

// postmanURLFor decomposes the URL the way Postman does, the host and path split
// into their segments.
func postmanURLFor(u spec.URL) postmanURL {
	out := postmanURL{
		Raw:      u.String(),
		Protocol: u.Scheme,
		Hash:     u.Fragment,
	}

	host := u.Host
	if h, port, err := net.SplitHostPort(host); err == nil {
		host = h
		out.Port = port
	}

	if host != "" {
		out.Host = strings.Split(host, ".")
	}

	if path := strings.Trim(u.Path, "/"); path != "" {
		out.Path = strings.Split(path, "/")
	}

	for _, param := range u.Query {
		out.Query = append(out.Query, postmanKV{Key: param.Name, Value: param.Value})
	}

	return out
}
