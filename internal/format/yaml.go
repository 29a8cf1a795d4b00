package format

import (
	"fmt"
	"io"

	"go.followtheprocess.codes/uncurl/internal/spec"
	"go.yaml.in/yaml/v4"
)

const yamlIndent = 2

// YAMLExporter is an [Exporter] that transforms requests into YAML documents.
type YAMLExporter struct{}

// Export implements [Exporter] for [YAMLExporter] and exports the given request as
// a complete YAML document.
func (y YAMLExporter) Export(w io.Writer, request spec.Request) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(yamlIndent)

	if err := encoder.Encode(request); err != nil {
		return err
	}

	return encoder.Close()
}

// YAMLImporter is an [Importer] that reads requests written by [YAMLExporter].
type YAMLImporter struct{}

// Import implements [Importer] for [YAMLImporter].
func (y YAMLImporter) Import(r io.Reader) (spec.Request, error) {
	var request spec.Request

	if err := yaml.NewDecoder(r).Decode(&request); err != nil {
		return spec.Request{}, fmt.Errorf("could not decode YAML: %w", err)
	}

	return request, nil
}
