// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig             `mapstructure:"app"`
	Server        ServerConfig          `mapstructure:"server"`
	GenAI         GenAIConfig           `mapstructure:"genai"`
	Prompts       PromptsConfig         `mapstructure:"prompts"`
	Flows         map[string]FlowConfig `mapstructure:"flows"`
	Repository    RepositoryConfig      `mapstructure:"repository"`
	Database      DatabaseConfig        `mapstructure:"database"`
	Notifications NotificationConfig    `mapstructure:"notifications"`
	Observability ObservabilityConfig   `mapstructure:"observability"`
	Logging       LoggingConfig         `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string     `mapstructure:"address"`
	ReadTimeout     int        `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int        `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int        `mapstructure:"shutdown_timeout"` // milliseconds
	CORS            CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GenAIConfig selects and configures the model provider.
type GenAIConfig struct {
	Provider      string  `mapstructure:"provider"` // gemini | http
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	Timeout       int     `mapstructure:"timeout"` // milliseconds
	MaxToolRounds int     `mapstructure:"max_tool_rounds"`
	Temperature   float64 `mapstructure:"temperature"`
}

type PromptsConfig struct {
	// Dir overlays *.tmpl files on the embedded templates. Optional.
	Dir string `mapstructure:"dir"`
}

// FlowConfig holds the per-flow template choice.
type FlowConfig struct {
	Template string `mapstructure:"template"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
	Fallback string `mapstructure:"fallback"`
}

type RepositoryConfig struct {
	Backend  string `mapstructure:"backend"` // memory | postgres
	SeedFile string `mapstructure:"seed_file"`
	Migrate  bool   `mapstructure:"migrate"`
	Cache    bool   `mapstructure:"cache"`
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotificationConfig drives the reminder dispatcher.
type NotificationConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Interval int  `mapstructure:"interval"` // milliseconds
	LeadDays int  `mapstructure:"lead_days"`
	Email    struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled     bool   `mapstructure:"enabled"`
		PhoneNumber string `mapstructure:"phone_number"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
