// internal/flows/predictive-maintenance/models.go
package predictivemaintenance

import "homewise/internal/models"

type Input struct {
	Category           string                           `json:"category"`
	Brand              string                           `json:"brand"`
	Model              string                           `json:"model"`
	LastMaintenance    string                           `json:"lastMaintenance"`
	PurchaseDate       string                           `json:"purchaseDate"`
	UsageFrequency     string                           `json:"usageFrequency"`
	WarrantyExpiry     string                           `json:"warrantyExpiry"`
	MaintenanceHistory []models.MaintenanceHistoryEntry `json:"maintenanceHistory,omitempty"`
}

// HasHistory reports whether any history entries were supplied. nil and empty are the same.
func (i *Input) HasHistory() bool {
	return len(i.MaintenanceHistory) > 0
}

type Output struct {
	TaskName            string         `json:"taskName"`
	NextMaintenanceDate string         `json:"nextMaintenanceDate"`
	EstimatedCost       float64        `json:"estimatedCost"`
	UrgencyLevel        models.Urgency `json:"urgencyLevel"`
}

// FromMachine builds a prediction request from a stored machine.
func FromMachine(m *models.Machine) *Input {
	return &Input{
		Category:           string(m.Category),
		Brand:              m.Brand,
		Model:              m.Model,
		LastMaintenance:    m.LastMaintenance,
		PurchaseDate:       m.PurchaseDate,
		UsageFrequency:     m.UsageFrequency,
		WarrantyExpiry:     m.WarrantyExpiry,
		MaintenanceHistory: m.History(),
	}
}
