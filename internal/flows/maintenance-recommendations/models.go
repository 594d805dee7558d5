// internal/flows/maintenance-recommendations/models.go
package maintenancerecommendations

import (
	"strings"

	"homewise/internal/models"
)

type Input struct {
	Category            string                           `json:"category"`
	Brand               string                           `json:"brand"`
	Model               string                           `json:"model"`
	UsageFrequency      string                           `json:"usageFrequency"`
	LastMaintenanceDate string                           `json:"lastMaintenanceDate"`
	PurchaseDate        string                           `json:"purchaseDate"`
	MaintenanceHistory  []models.MaintenanceHistoryEntry `json:"maintenanceHistory,omitempty"`
	Location            *string                          `json:"location,omitempty"`
}

func (i *Input) HasHistory() bool {
	return len(i.MaintenanceHistory) > 0
}

// HasLocation is false for a nil or blank location.
func (i *Input) HasLocation() bool {
	return i.Location != nil && strings.TrimSpace(*i.Location) != ""
}

// LocationText returns the trimmed location, or "" when absent.
func (i *Input) LocationText() string {
	if !i.HasLocation() {
		return ""
	}
	return strings.TrimSpace(*i.Location)
}

type Output struct {
	CostSavingTips              string `json:"costSavingTips"`
	RecommendedServiceProviders string `json:"recommendedServiceProviders"`
	EstimatedRemainingLife      string `json:"estimatedRemainingLife"`
	CriticalAttentionNeeded     string `json:"criticalAttentionNeeded"`
}

// FromMachine builds a recommendations request for a stored machine. location may be nil.
func FromMachine(m *models.Machine, location *string) *Input {
	return &Input{
		Category:            string(m.Category),
		Brand:               m.Brand,
		Model:               m.Model,
		UsageFrequency:      m.UsageFrequency,
		LastMaintenanceDate: m.LastMaintenance,
		PurchaseDate:        m.PurchaseDate,
		MaintenanceHistory:  m.History(),
		Location:            location,
	}
}
