package format

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"go.followtheprocess.codes/uncurl/internal/spec"
)

//go:embed templates/curl.txt.tmpl
var curlTempl string

// safeWord matches shell words that need no quoting.
//
//nolint:gochecknoglobals // Effectively a constant
var safeWord = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// curlFunctions are custom template functions available in the curlTemplate.
//
//nolint:gochecknoglobals // This has to be here
var curlFunctions = template.FuncMap{
	"quote":          shellQuote,
	"compact":        compact,
	"cookies":        spec.CookieHeader,
	"seconds":        seconds,
	"part":           part,
	"explicitMethod": explicitMethod,
}

// curlTemplate is the parsed curl command line text/template.
//
//nolint:gochecknoglobals // Having the template as a global means it's parsed only once
var curlTemplate = template.Must(template.New("curl").Funcs(curlFunctions).Parse(curlTempl))

// CurlExporter is an [Exporter] that transforms a request back into a canonical
// curl command, one option per line.
//
// Parsing the exported command gives back the same request.
type CurlExporter struct{}

// Export implements [Exporter] for [CurlExporter].
func (c CurlExporter) Export(w io.Writer, request spec.Request) error {
	if err := curlTemplate.Execute(w, request); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\n")

	return err
}

// shellQuote quotes s for a POSIX shell, leaving it alone if that's not needed.
func shellQuote(s string) string {
	if safeWord.MatchString(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// compact returns the payload of a body, multi-line JSON is minified so it fits
// on one line.
func compact(body spec.Body) string {
	if body.Kind != spec.BodyJSON || !strings.Contains(body.Payload, "\n") {
		return body.Payload
	}

	buf := &bytes.Buffer{}
	if err := json.Compact(buf, []byte(body.Payload)); err != nil {
		return body.Payload
	}

	return buf.String()
}

// seconds formats a number of milliseconds as seconds for curl's timeout flags.
func seconds(ms int) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}

// part renders a multipart file field for -F.
func part(field spec.Field) string {
	s := field.Name + "=@" + field.Value
	if field.ContentType != "" {
		s += ";type=" + field.ContentType
	}

	return s
}

// explicitMethod reports whether the request's method differs from the one curl
// would choose on its own.
func explicitMethod(request spec.Request) bool {
	implied := "GET"
	if request.Body.Kind != spec.BodyNone || request.Body.File != "" {
		implied = "POST"
	}

	return request.Method != implied
}
