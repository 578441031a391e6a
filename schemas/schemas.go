// Package schemas embeds the OpenAPI contract of the mdcombine HTTP API.
package schemas

import _ "embed"

// OpenAPISpec is the raw openapi.yaml document.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
