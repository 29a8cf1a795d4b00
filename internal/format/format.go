// Package format provides conversions of the resolved request a curl command makes
// into and from other formats.
//
// Notably, the package provides the [Importer] and [Exporter] interfaces for doing this
// in a format-agnostic way.
//
// It also provides the built in importers and exporters: JSON, YAML, TOML, Postman
// and a canonical curl command.
package format

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"go.followtheprocess.codes/uncurl/internal/spec"
)

// Exporter is the interface defining a mechanism for exporting a request into an
// external format.
type Exporter interface {
	// Export exports the [spec.Request] into an external format, written to w.
	Export(w io.Writer, request spec.Request) error
}

// Importer is the interface defining a mechanism for importing a request from an
// external format.
type Importer interface {
	// Import imports the data from the external format into a [spec.Request].
	Import(r io.Reader) (spec.Request, error)
}

// exporters maps format names to their exporter.
//
//nolint:gochecknoglobals // Effectively a constant lookup table
var exporters = map[string]Exporter{
	"json":    JSONExporter{},
	"yaml":    YAMLExporter{},
	"toml":    TOMLExporter{},
	"postman": PostmanExporter{},
	"curl":    CurlExporter{},
}

// importers maps format names to their importer.
//
//nolint:gochecknoglobals // Effectively a constant lookup table
var importers = map[string]Importer{
	"json": JSONImporter{},
	"yaml": YAMLImporter{},
}

// Formats returns the names of every export format, sorted.
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// ExporterFor returns the [Exporter] for the named format.
func ExporterFor(name string) (Exporter, error) {
	exporter, ok := exporters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown format %q, allowed values are %s", name, strings.Join(Formats(), ", "))
	}

	return exporter, nil
}

// ImporterFor returns the [Importer] for the named format.
func ImporterFor(name string) (Importer, error) {
	importer, ok := importers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("cannot import format %q, allowed values are json, yaml", name)
	}

	return importer, nil
}
