// Package api holds the JSON wire types of the mdcombine HTTP API.
// They mirror the schemas in schemas/openapi.yaml.
package api

// ListFilesResponse is the body of GET /api/files/listMdFiles.
type ListFilesResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ListedMessage is the fixed message returned alongside a successful listing.
const ListedMessage = "Markdown files found"
