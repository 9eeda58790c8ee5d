// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Chat          ChatConfig         `mapstructure:"chat"`
	Routing       RoutingConfig      `mapstructure:"routing"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	CallLog       CallLogConfig      `mapstructure:"call_log"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Specific Configuration Sections ---

// ChatConfig holds settings for the external chat channel API.
// The bot token is a static bearer credential supplied out-of-band.
type ChatConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	BotToken string `mapstructure:"bot_token"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

// RoutingConfig holds the static lead-vendor to channel mapping.
// Lookup is exact-match and case-sensitive; there is no fallback channel.
type RoutingConfig struct {
	VendorChannels map[string]string `mapstructure:"vendor_channels"`
}

// NotificationConfig holds lifecycle settings for retention-call notifications.
type NotificationConfig struct {
	PendingTTLMinutes int    `mapstructure:"pending_ttl_minutes"`
	AlertDedupTTL     int    `mapstructure:"alert_dedup_ttl_minutes"`
	CallResultRoute   string `mapstructure:"call_result_route"`
}

// CallLogConfig holds settings for the call update log read side.
type CallLogConfig struct {
	SearchIndex   string `mapstructure:"search_index"`
	IndexingOn    bool   `mapstructure:"indexing_enabled"`
	DirectoryTTL  int    `mapstructure:"directory_cache_ttl_minutes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
