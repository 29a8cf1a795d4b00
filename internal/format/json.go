package format

import (
	"encoding/json"
	"fmt"
	"io"

	"go.followtheprocess.codes/uncurl/internal/spec"
)

// JSONExporter is an [Exporter] that transforms requests into JSON documents.
type JSONExporter struct{}

// Export implements [Exporter] for [JSONExporter] and exports the given request
// as a complete JSON document.
func (j JSONExporter) Export(w io.Writer, request spec.Request) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(request)
}

// JSONImporter is an [Importer] that transforms JSON representations of
// requests, as written by [JSONExporter], back into the [spec.Request].
type JSONImporter struct{}

// Import implements [Importer] for [JSONImporter] and imports the given
// JSON document into a [spec.Request].
func (j JSONImporter) Import(r io.Reader) (spec.Request, error) {
	var request spec.Request

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&request); err != nil {
		return spec.Request{}, fmt.Errorf("could not decode JSON: %w", err)
	}

	return request, nil
}
