// internal/flows/predictive-maintenance/config.go
package predictivemaintenance

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
		Template: prompt.PredictMaintenance,
		Timeout:  60 * time.Second,
	}
}
