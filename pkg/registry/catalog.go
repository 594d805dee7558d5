// pkg/registry/catalog.go
package registry

import (
	"time"

	"homewise/internal/actions"
	apperrors "homewise/internal/common/errors"
	"homewise/internal/flows/chat"
	maintenancerecommendations "homewise/internal/flows/maintenance-recommendations"
	predictivemaintenance "homewise/internal/flows/predictive-maintenance"
	"homewise/internal/prompt"
	"homewise/internal/schemas"
	"homewise/internal/tools"
)

const CatalogVersion = "1.0.0"

var flowErrorCodes = []string{
	string(apperrors.ErrCodeValidationFailed),
	string(apperrors.ErrCodeModelUnavailable),
	string(apperrors.ErrCodeOutputShapeInvalid),
}

// Templates names the template each flow renders, keyed by flow id.
type Templates map[string]string

func (t Templates) get(id, fallback string) string {
	if name, ok := t[id]; ok && name != "" {
		return name
	}
	return fallback
}

// Build describes the three flows and every tool in toolRegistry. templates may be nil.
func Build(toolRegistry *tools.Registry, templates Templates, timeout time.Duration) *Catalog {
	timeoutText := ""
	if timeout > 0 {
		timeoutText = timeout.String()
	}

	c := &Catalog{
		Version:     CatalogVersion,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Entries: []Entry{
			{
				ID:           predictivemaintenance.TaskType,
				DisplayName:  "Predictive Maintenance",
				Description:  "Predicts the next maintenance task, its due date, cost and urgency for one machine.",
				Kind:         KindFlow,
				Template:     templates.get(predictivemaintenance.TaskType, prompt.PredictMaintenance),
				Action:       actions.ActionPredictiveMaintenance,
				InputSchema:  schemas.PredictiveMaintenanceInput,
				OutputSchema: schemas.PredictiveMaintenanceOutput,
				ErrorCodes:   flowErrorCodes,
				Timeout:      timeoutText,
				Tags:         []string{"structured-output"},
			},
			{
				ID:           maintenancerecommendations.TaskType,
				DisplayName:  "Maintenance Recommendations",
				Description:  "Cost saving tips, service providers, remaining life and critical issues for one machine.",
				Kind:         KindFlow,
				Template:     templates.get(maintenancerecommendations.TaskType, prompt.MaintenanceRecommendations),
				Action:       actions.ActionRecommendations,
				InputSchema:  schemas.MaintenanceRecommendationsInput,
				OutputSchema: schemas.MaintenanceRecommendationsOutput,
				ErrorCodes:   flowErrorCodes,
				Tools:        []string{tools.GeolocationToolName},
				Timeout:      timeoutText,
				Tags:         []string{"structured-output", "tool-use"},
			},
			{
				ID:           chat.TaskType,
				DisplayName:  "Maintenance Chat",
				Description:  "Conversational assistant for home and appliance maintenance questions.",
				Kind:         KindFlow,
				Template:     templates.get(chat.TaskType, prompt.Chat),
				Action:       actions.ActionChat,
				InputSchema:  schemas.ChatInput,
				OutputSchema: schemas.ChatOutput,
				ErrorCodes: []string{
					string(apperrors.ErrCodeValidationFailed),
					string(apperrors.ErrCodeModelUnavailable),
				},
				Timeout: timeoutText,
				Tags:    []string{"free-text", "fallback"},
			},
		},
	}

	if toolRegistry != nil {
		for _, name := range toolRegistry.Names() {
			tool, _ := toolRegistry.Get(name)
			c.Entries = append(c.Entries, Entry{
				ID:           tool.Name,
				DisplayName:  tool.Name,
				Description:  tool.Description,
				Kind:         KindTool,
				InputSchema:  tool.InputSchema,
				OutputSchema: tool.OutputSchema,
			})
		}
	}
	return c
}
