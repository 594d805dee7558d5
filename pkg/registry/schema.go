// pkg/registry/schema.go
package registry

import "homewise/internal/common/validation"

const (
	KindFlow = "flow"
	KindTool = "tool"
)

// Catalog describes every AI capability the service exposes.
type Catalog struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Entries     []Entry `json:"entries"`
}

type Entry struct {
	ID           string                `json:"id"`
	DisplayName  string                `json:"displayName"`
	Description  string                `json:"description"`
	Kind         string                `json:"kind"`
	Template     string                `json:"template,omitempty"`
	Action       string                `json:"action,omitempty"`
	InputSchema  validation.JSONSchema `json:"inputSchema"`
	OutputSchema validation.JSONSchema `json:"outputSchema"`
	ErrorCodes   []string              `json:"errorCodes,omitempty"`
	Tools        []string              `json:"tools,omitempty"`
	Timeout      string                `json:"timeout,omitempty"`
	Tags         []string              `json:"tags,omitempty"`
}
