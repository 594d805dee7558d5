// internal/flows/maintenance-recommendations/config.go
package maintenancerecommendations

import (
	"time"

	"homewise/internal/prompt"
)

type Config struct {
	Template string
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Template: prompt.MaintenanceRecommendations,
		Timeout:  60 * time.Second,
	}
}
