// internal/notifications/config.go
package notifications

import "time"

const defaultInterval = time.Hour

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	ToEmail      string
	ToPhone      string
	LeadDays     int
	Interval     time.Duration
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		LeadDays: 7,
		Interval: defaultInterval,
		Timeout:  30 * time.Second,
	}
}
