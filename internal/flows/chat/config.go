// internal/flows/chat/config.go
package chat

import (
	"time"

	"homewise/internal/prompt"
)

type Config struct {
	Template string
	Timeout  time.Duration
	Fallback string
}

func LoadConfig() *Config {
	return &Config{
		Template: prompt.Chat,
		Timeout:  60 * time.Second,
		Fallback: FallbackResponse,
	}
}
