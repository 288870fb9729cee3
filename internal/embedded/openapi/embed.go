// Package openapi embeds the OpenAPI document for the mirrorsync HTTP API.
// The YAML file is the source; JSON is derived from it once.
package openapi

import (
	_ "embed"
	"sync"

	"github.com/goccy/go-yaml"
)

// SpecYAML contains the OpenAPI 3.0 document.
// Served at: GET /openapi.yaml
//
//go:embed openapi.yaml
var SpecYAML []byte

var specJSON = sync.OnceValues(func() ([]byte, error) {
	return yaml.YAMLToJSON(SpecYAML)
})

// SpecJSON returns the document converted to JSON.
// Served at: GET /openapi.json
func SpecJSON() ([]byte, error) {
	return specJSON()
}
