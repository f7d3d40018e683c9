// Package openapi embeds the OpenAPI document of the artifact HTTP API.
package openapi

import _ "embed"

// ArtifactAPISpec is the OpenAPI document served at /openapi.yaml.
//
//go:embed artifact-api.yaml
var ArtifactAPISpec []byte

// Spec returns a copy of the embedded document.
func Spec() []byte {
	return append([]byte(nil), ArtifactAPISpec...)
}
