// Package openapi describes the preference endpoints of an account service as
// an OpenAPI 3 document: the stored documents of accounts and of the
// installation, and the effective settings of every category.
package openapi

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-accountstate/preferences"
)

// Generator builds OpenAPI documents.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a generator with the given options applied over
// the defaults.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

// Generate returns the document as nested maps.
func (g *Generator) Generate() (map[string]any, error) {
	return newOpenAPIDocumentBuilder(g.config).build()
}

// JSON returns the indented JSON encoding of the document.
func (g *Generator) JSON() ([]byte, error) {
	document, err := g.Generate()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(document, "", "  ")
}

// CategorySchema returns the inline schema of the effective settings of c.
// With defaults the schema carries the built-in value of every field.
func CategorySchema(c preferences.Category, withDefaults bool) (map[string]any, error) {
	baseline, err := preferences.Baseline(c)
	if err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}
	node, err := buildSchemaGraph(baseline, c.String(), withDefaults)
	if err != nil {
		return nil, err
	}
	return node.inlineOpenAPI(), nil
}
