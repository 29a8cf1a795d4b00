package codegen

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
	"go.followtheprocess.codes/uncurl/internal/envvars"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// httpBoundary separates the parts of a multipart body in a .http file.
const httpBoundary = "uncurl-boundary"

// httpFile generates a .http request file, as read by the VS Code REST
// Client and JetBrains HTTP client.
type httpFile struct {
	*gen
}

// emitHTTPFile is the emitter for http/http-file.
func emitHTTPFile(g *gen) program {
	h := httpFile{gen: g}

	return program{
		FileName: g.fileBase() + ".http",
		Preamble: h.preamble(),
		Main:     h.request(),
	}
}

func (h httpFile) preamble() Block {
	w := newWriter("#")
	h.intro(w)

	return w.Block()
}

// value renders a value with {{$processEnv NAME}} for environment variables.
func (h httpFile) value(value envvars.Value) string {
	return value.Render(func(name string) string {
		return "{{$processEnv " + name + "}}"
	})
}

// request writes the request line, headers and body.
func (h httpFile) request() Block {
	w := newWriter("#")
	w.line("### %s", h.snake())
	w.line("%s %s", h.method(), h.value(h.url()))

	for _, header := range h.headers {
		w.line("%s: %s", header.Name, h.value(header.Value))
	}

	if h.basicAuth() {
		w.line("Authorization: Basic %s:%s", h.username(), h.value(h.password()))
	}

	body := h.body()

	if body.Kind == spec.BodyMultipart {
		w.line("Content-Type: multipart/form-data; boundary=%s", httpBoundary)
	}

	switch {
	case body.Kind == spec.BodyNone:
	case body.File != "":
		w.blank()
		w.line("< %s", relative(body.File))
	case h.json != nil:
		w.blank()

		for line := range strings.SplitSeq(shape.Indent(h.json, "  "), "\n") {
			w.line("%s", line)
		}
	case body.Kind == spec.BodyMultipart:
		w.blank()

		for _, field := range body.Fields {
			w.line("--%s", httpBoundary)

			if !field.File {
				w.line("Content-Disposition: form-data; name=%q", field.Name)
				w.blank()
				w.line("%s", field.Value)

				continue
			}

			w.line("Content-Disposition: form-data; name=%q; filename=%q", field.Name, baseName(field.Value))

			if field.ContentType != "" {
				w.line("Content-Type: %s", field.ContentType)
			}

			w.blank()
			w.line("< %s", relative(field.Value))
		}

		w.line("--%s--", httpBoundary)
	default:
		w.blank()

		for line := range strings.SplitSeq(h.payload(), "\n") {
			w.line("%s", line)
		}
	}

	return w.Block()
}

// relative returns a file path in the form request files expect, relative
// paths start with "./".
func relative(path string) string {
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, ".") || strings.HasPrefix(path, "~") {
		return path
	}

	return fmt.Sprintf("./%s", path)
}
