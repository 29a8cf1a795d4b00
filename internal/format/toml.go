package format

import (
	"io"

	"github.com/BurntSushi/toml"
	"go.followtheprocess.codes/uncurl/internal/spec"
)

// TOMLExporter is an [Exporter] that transforms requests into TOML documents.
type TOMLExporter struct{}

// Export implements [Exporter] for [TOMLExporter] and exports the given request
// as a complete TOML document.
func (t TOMLExporter) Export(w io.Writer, request spec.Request) error {
	encoder := toml.NewEncoder(w)
	encoder.Indent = ""

	return encoder.Encode(request)
}
