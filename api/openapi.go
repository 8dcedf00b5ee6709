// Package api embeds the published OpenAPI document.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
