// Package resolver implements a resolver for the raw curl AST.
//
// The resolution stage makes every semantic decision the parser deliberately
// leaves open: which HTTP method is used, what kind of body is being sent, how the
// request authenticates and what the URL decomposes into, resulting in a
// fully concrete [spec.Request].
//
// Resolving never fails, problems it finds along the way (a header with no colon,
// an unparseable timeout) are reported as diagnostics and the offending piece is
// skipped.
package resolver

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/spec"
	"go.followtheprocess.codes/uncurl/internal/syntax"
	"go.followtheprocess.codes/uncurl/internal/syntax/ast"
)

// Default content types.
const (
	contentTypeJSON      = "application/json"
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
)

// formShape matches a payload that looks like "key=value&key2=value2".
var formShape = regexp.MustCompile(`^[^=&\s{}\[\]"]+=[^&]*(&[^=&\s{}\[\]"]+=[^&]*)*$`)

// Resolver is the ast resolver for curl commands.
//
// It transforms an [ast.Command] into a concrete [spec.Request].
type Resolver struct {
	name        string              // The name of the input being resolved
	src         []byte              // The normalised source, for diagnostic positions
	diagnostics []syntax.Diagnostic // Diagnostics collected during resolving
}

// New returns a new [Resolver].
//
// src should be the normalised source the command was parsed from, see
// [parser.Parser.Source].
func New(name string, src []byte) *Resolver {
	return &Resolver{
		name: name,
		src:  src,
	}
}

// Resolve resolves an [ast.Command] into a concrete [spec.Request].
func (r *Resolver) Resolve(in ast.Command) spec.Request {
	request := spec.Request{}

	request.URL = r.resolveURL(in.URL)
	request.Headers = r.resolveHeaders(in.Headers)

	if in.Referer != nil && !request.Headers.Has("Referer") {
		request.Headers.Set("Referer", in.Referer.Text())
	}

	if in.JSON {
		// --json is shorthand for these headers, unless they're given explicitly
		if !request.Headers.Has("Content-Type") {
			request.Headers.Set("Content-Type", contentTypeJSON)
		}

		if !request.Headers.Has("Accept") {
			request.Headers.Set("Accept", contentTypeJSON)
		}
	}

	request.Flags = r.resolveFlags(in)
	request.Auth = r.resolveAuth(in, &request)
	request.Body = r.resolveBody(in, &request)
	request.Method = r.resolveMethod(in, request.Body)

	return request
}

// Diagnostics returns the diagnostics gathered during resolving.
func (r *Resolver) Diagnostics() []syntax.Diagnostic {
	return r.diagnostics
}

// warnf records a formatted warning about arg.
//
// A nil arg produces a diagnostic with no position.
func (r *Resolver) warnf(arg *ast.Arg, format string, a ...any) {
	diag := syntax.Diagnostic{Msg: fmt.Sprintf(format, a...)}

	if arg != nil {
		diag.Position = syntax.PositionOf(r.name, r.src, arg.Start(), arg.End())
	}

	r.diagnostics = append(r.diagnostics, diag)
}

// resolveURL decomposes the bound URL argument.
func (r *Resolver) resolveURL(arg *ast.Arg) spec.URL {
	if arg == nil {
		// The parser has already reported this one
		return spec.URL{}
	}

	raw := arg.Text()

	u, err := spec.ParseURL(raw)
	if err != nil {
		r.warnf(arg, "%v", err)
		return u
	}

	if !strings.Contains(raw, "://") {
		r.warnf(arg, "URL %q has no scheme, assuming http://", raw)
	}

	return u
}

// resolveHeaders resolves the raw -H arguments into ordered headers.
//
// Like curl, "Name:" with no value removes the header and "Name;" sends it with an
// empty value.
func (r *Resolver) resolveHeaders(args []ast.Arg) spec.Headers {
	var headers spec.Headers

	for _, arg := range args {
		text := arg.Text()

		name, value, found := strings.Cut(text, ":")
		if !found {
			if empty, ok := strings.CutSuffix(strings.TrimSpace(text), ";"); ok && empty != "" {
				headers.Set(empty, "")
				continue
			}

			r.warnf(&arg, "malformed header %q, expected \"Name: value\"", text)

			continue
		}

		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)

		if name == "" {
			r.warnf(&arg, "header %q has no name", text)
			continue
		}

		if value == "" {
			headers.Del(name)
			continue
		}

		headers.Set(name, value)
	}

	return headers
}

// resolveFlags resolves the transport level settings.
func (r *Resolver) resolveFlags(in ast.Command) spec.Flags {
	flags := spec.Flags{
		FollowRedirects:    in.Location,
		InsecureSkipVerify: in.Insecure,
		Compressed:         in.Compressed,
	}

	if in.UserAgent != nil {
		flags.UserAgent = in.UserAgent.Text()
	}

	if in.Output != nil {
		flags.Output = in.Output.Text()
	}

	flags.TimeoutMs = r.resolveSeconds(in.MaxTime)
	flags.ConnectTimeoutMs = r.resolveSeconds(in.ConnectTimeout)

	for _, arg := range in.Cookies {
		text := arg.Text()
		if !strings.Contains(text, "=") {
			r.warnf(&arg, "reading cookies from file %q is not supported, ignoring", text)
			continue
		}

		for pair := range strings.SplitSeq(text, ";") {
			name, value, _ := strings.Cut(strings.TrimSpace(pair), "=")
			if name == "" {
				continue
			}

			flags.Cookies = append(flags.Cookies, spec.Cookie{Name: name, Value: value})
		}
	}

	return flags
}

// resolveSeconds converts a (possibly fractional) number of seconds given to
// a timeout flag into milliseconds, 0 if not given or invalid.
func (r *Resolver) resolveSeconds(arg *ast.Arg) int {
	if arg == nil {
		return 0
	}

	seconds, err := strconv.ParseFloat(arg.Text(), 64)
	if err != nil || seconds < 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		r.warnf(arg, "invalid timeout %q, expected a number of seconds", arg.Text())
		return 0
	}

	return int(math.Round(seconds * 1000))
}

// resolveAuth works out how the request authenticates.
//
// An explicit Authorization header takes precedence over -u, which in turn takes
// precedence over credentials embedded in the URL. --oauth2-bearer is turned into
// an Authorization header if there isn't one already.
func (r *Resolver) resolveAuth(in ast.Command, request *spec.Request) spec.Auth {
	if in.Bearer != nil {
		if request.Headers.Has("Authorization") {
			r.warnf(in.Bearer, "--oauth2-bearer is ignored, the Authorization header takes precedence")
		} else {
			request.Headers.Set("Authorization", "Bearer "+in.Bearer.Text())
		}
	}

	if header, ok := request.Headers.Get("Authorization"); ok {
		if in.User != nil {
			r.warnf(in.User, "%s is ignored, the Authorization header takes precedence", in.User.Flag.Value)
		}

		return authFromHeader(header, in.Bearer == nil)
	}

	if in.User != nil {
		username, password, found := strings.Cut(in.User.Text(), ":")
		if !found {
			r.warnf(in.User, "no password given for user %q, curl would prompt for one", username)
		}

		return spec.Auth{Kind: spec.AuthBasic, Username: username, Password: password}
	}

	if request.URL.Username != "" {
		auth := spec.Auth{
			Kind:     spec.AuthBasic,
			Username: request.URL.Username,
			Password: request.URL.Password,
		}

		request.URL.Username, request.URL.Password = "", ""

		return auth
	}

	return spec.Auth{}
}

// authFromHeader interprets the value of an Authorization header.
func authFromHeader(header string, explicit bool) spec.Auth {
	scheme, credentials, _ := strings.Cut(strings.TrimSpace(header), " ")
	credentials = strings.TrimSpace(credentials)

	switch strings.ToLower(scheme) {
	case "bearer":
		return spec.Auth{Kind: spec.AuthBearer, Token: credentials, FromHeader: explicit}
	case "basic":
		auth := spec.Auth{Kind: spec.AuthBasic, FromHeader: true}

		decoded, err := base64.StdEncoding.DecodeString(credentials)
		if err == nil {
			auth.Username, auth.Password, _ = strings.Cut(string(decoded), ":")
		}

		return auth
	default:
		return spec.Auth{}
	}
}

// resolveBody classifies and builds the request body.
//
// The precedence is:
//
//   - No payload (or an empty one) and no -F fields: no body, regardless of headers
//   - -F fields only: multipart
//   - An explicit Content-Type header decides between json, form, and raw
//   - A payload that is valid JSON object or array: json
//   - A payload shaped like "key=value&...": form
//   - Anything else: raw
func (r *Resolver) resolveBody(in ast.Command, request *spec.Request) spec.Body {
	payload := in.Body.Payload
	file := in.Body.File
	hasPayload := payload != "" || file != ""
	fields := r.resolveForm(in.Form)

	if in.Get && hasPayload {
		// -G sends the data in the query string instead
		if file != "" {
			r.warnf(&in.Body.Parts[0], "-G with data from file %q is not supported, ignoring the data", file)
		} else {
			request.URL.Query = append(request.URL.Query, spec.ParseQuery(payload)...)
		}

		hasPayload = false
	}

	if hasPayload && len(fields) != 0 {
		r.warnf(&in.Form[0], "cannot send both data and form fields, ignoring -F")
		fields = nil
	}

	if !hasPayload && len(fields) == 0 {
		return spec.Body{}
	}

	explicit, hasContentType := request.Headers.Get("Content-Type")

	if !hasPayload {
		return spec.Body{Kind: spec.BodyMultipart, Fields: fields, ContentType: contentTypeMultipart}
	}

	body := spec.Body{Payload: payload, File: file}

	if hasContentType {
		body.ContentType = explicit
		body.Kind = kindFromContentType(explicit)
	} else {
		body.Kind, body.ContentType = sniff(payload, file)
	}

	if body.Kind == spec.BodyForm && file == "" {
		body.Fields = spec.ParseForm(payload)
	}

	return body
}

// kindFromContentType returns the body kind for an explicit content type.
func kindFromContentType(contentType string) spec.BodyKind {
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		media = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case media == contentTypeJSON, strings.HasSuffix(media, "+json"):
		return spec.BodyJSON
	case media == contentTypeForm:
		return spec.BodyForm
	default:
		return spec.BodyRaw
	}
}

// sniff guesses the kind of a payload with no explicit content type, returning
// the kind and the content type to send it with.
func sniff(payload, file string) (spec.BodyKind, string) {
	if file != "" {
		if strings.EqualFold(filepath.Ext(file), ".json") {
			return spec.BodyJSON, contentTypeJSON
		}

		return spec.BodyRaw, contentTypeForm
	}

	trimmed := strings.TrimSpace(payload)
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)) {
		return spec.BodyJSON, contentTypeJSON
	}

	if formShape.MatchString(trimmed) {
		return spec.BodyForm, contentTypeForm
	}

	// curl sends everything given with -d as a form unless told otherwise
	return spec.BodyRaw, contentTypeForm
}

// resolveForm parses the -F arguments into multipart fields.
//
// "name=value" is a text field, "name=@path" uploads a file and "name=<path" sends
// the contents of a file as a text field. A ";type=" suffix sets the part's content
// type. --form-string values are always taken literally.
func (r *Resolver) resolveForm(args []ast.Arg) []spec.Field {
	var fields []spec.Field

	for _, arg := range args {
		name, value, found := strings.Cut(arg.Text(), "=")
		if !found || name == "" {
			r.warnf(&arg, "malformed form field %q, expected \"name=value\"", arg.Text())
			continue
		}

		field := spec.Field{Name: name, Value: value}

		if arg.Flag.Value == "--form-string" {
			fields = append(fields, field)
			continue
		}

		if path, ok := strings.CutPrefix(value, "@"); ok {
			field.File = true
			field.Value = path
		} else if path, ok := strings.CutPrefix(value, "<"); ok {
			field.File = true
			field.Value = path
		}

		if field.File {
			if path, contentType, ok := strings.Cut(field.Value, ";type="); ok {
				field.Value, field.ContentType = path, contentType
			}
		}

		fields = append(fields, field)
	}

	return fields
}

// resolveMethod works out the HTTP method.
//
// An explicit -X always wins, then -I means HEAD and -G means GET, otherwise a
// non-empty body or form field means POST and the default is GET.
func (r *Resolver) resolveMethod(in ast.Command, body spec.Body) string {
	switch {
	case in.Method != nil:
		method := strings.ToUpper(strings.TrimSpace(in.Method.Text()))
		if method == "" {
			r.warnf(in.Method, "empty request method, using GET")
			return http.MethodGet
		}

		return method
	case in.Head:
		return http.MethodHead
	case in.Get:
		return http.MethodGet
	case body.Kind != spec.BodyNone:
		return http.MethodPost
	default:
		return http.MethodGet
	}
}
