// Package models holds the household records the flows, dashboard and stores share.
package models

import (
	"strings"
	"time"
)

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

type MachineCategory string

const (
	CategoryVehicle          MachineCategory = "Vehicle"
	CategoryKitchenAppliance MachineCategory = "Kitchen Appliance"
	CategoryHVAC             MachineCategory = "HVAC"
	CategoryGarden           MachineCategory = "Garden"
	CategoryElectronics      MachineCategory = "Electronics"
	CategoryLaundry          MachineCategory = "Laundry"
	CategoryOther            MachineCategory = "Other"
)

// MachineCategories lists every category in display order.
var MachineCategories = []string{
	string(CategoryVehicle),
	string(CategoryKitchenAppliance),
	string(CategoryHVAC),
	string(CategoryGarden),
	string(CategoryElectronics),
	string(CategoryLaundry),
	string(CategoryOther),
}

// UsageFrequencies lists the accepted usage frequency values.
var UsageFrequencies = []string{"Daily", "Weekly", "Monthly", "Rarely"}

type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

// UrgencyLevels lists the urgency literals. Matching is case-sensitive.
var UrgencyLevels = []string{string(UrgencyLow), string(UrgencyMedium), string(UrgencyHigh)}

// Rank orders urgencies, Low=1 .. High=3, unknown=0.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	default:
		return 0
	}
}

type TaskStatus string

const (
	StatusPending   TaskStatus = "Pending"
	StatusCompleted TaskStatus = "Completed"
	StatusOverdue   TaskStatus = "Overdue"
)

var TaskStatuses = []string{string(StatusPending), string(StatusCompleted), string(StatusOverdue)}

// MaintenanceHistoryEntry is one past service as the flows consume it.
type MaintenanceHistoryEntry struct {
	Task string  `json:"task" yaml:"task"`
	Date string  `json:"date" yaml:"date"`
	Cost float64 `json:"cost" yaml:"cost"`
}

// MaintenanceRecord is a stored history entry of a machine.
type MaintenanceRecord struct {
	ID     string  `json:"id" yaml:"id"`
	Task   string  `json:"task" yaml:"task"`
	Date   string  `json:"date" yaml:"date"`
	Cost   float64 `json:"cost" yaml:"cost"`
	Vendor *string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Notes  *string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type Machine struct {
	ID                 string              `json:"id" yaml:"id"`
	UserID             string              `json:"userId" yaml:"userId"`
	Name               string              `json:"name" yaml:"name"`
	Category           MachineCategory     `json:"category" yaml:"category"`
	Brand              string              `json:"brand" yaml:"brand"`
	Model              string              `json:"model" yaml:"model"`
	SerialNumber       *string             `json:"serialNumber,omitempty" yaml:"serialNumber,omitempty"`
	PurchaseDate       string              `json:"purchaseDate" yaml:"purchaseDate"`
	WarrantyExpiry     string              `json:"warrantyExpiry" yaml:"warrantyExpiry"`
	LastMaintenance    string              `json:"lastMaintenance" yaml:"lastMaintenance"`
	UsageFrequency     string              `json:"usageFrequency" yaml:"usageFrequency"`
	MaintenanceHistory []MaintenanceRecord `json:"maintenanceHistory" yaml:"maintenanceHistory"`
	ImageURL           string              `json:"imageUrl" yaml:"imageUrl"`
	ImageHint          string              `json:"imageHint" yaml:"imageHint"`
}

// History projects stored records onto the entries the flows take, keeping order.
func (m *Machine) History() []MaintenanceHistoryEntry {
	if len(m.MaintenanceHistory) == 0 {
		return nil
	}
	out := make([]MaintenanceHistoryEntry, len(m.MaintenanceHistory))
	for i, r := range m.MaintenanceHistory {
		out[i] = MaintenanceHistoryEntry{Task: r.Task, Date: r.Date, Cost: r.Cost}
	}
	return out
}

type MaintenanceTask struct {
	ID               string     `json:"id" yaml:"id"`
	MachineID        string     `json:"machineId" yaml:"machineId"`
	TaskName         string     `json:"taskName" yaml:"taskName"`
	DueDate          string     `json:"dueDate" yaml:"dueDate"`
	Status           TaskStatus `json:"status" yaml:"status"`
	EstimatedCost    float64    `json:"estimatedCost" yaml:"estimatedCost"`
	UrgencyLevel     Urgency    `json:"urgencyLevel" yaml:"urgencyLevel"`
	NotificationSent bool       `json:"notificationSent" yaml:"notificationSent"`
}

// ParseDate accepts YYYY-MM-DD and full RFC3339 timestamps.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// DaysUntil returns whole calendar days from now to date, negative when in the past.
func DaysUntil(date string, now time.Time) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24), nil
}
