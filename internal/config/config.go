// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Neo4j() Neo4jConfig
	Executor() ExecutorConfig
	Schema() SchemaConfig
	Server() ServerConfig
	Audit() AuditConfig

	SetNeo4jDatabase(name string)
	SetExecutorRowCap(n int)
	SetServerListenAddr(addr string)
}

// Config holds the entire application configuration. Sections are exported
// so viper can unmarshal into them; callers go through the getters.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Neo4jCfg    Neo4jConfig    `mapstructure:"neo4j" yaml:"neo4j"`
	ExecutorCfg ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	SchemaCfg   SchemaConfig   `mapstructure:"schema" yaml:"schema"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
	AuditCfg    AuditConfig    `mapstructure:"audit" yaml:"audit"`
}

// -- Getters --

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Neo4j() Neo4jConfig       { return c.Neo4jCfg }
func (c *Config) Executor() ExecutorConfig { return c.ExecutorCfg }
func (c *Config) Schema() SchemaConfig     { return c.SchemaCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }
func (c *Config) Audit() AuditConfig       { return c.AuditCfg }

// -- Setters (CLI flag overrides) --

func (c *Config) SetNeo4jDatabase(name string)    { c.Neo4jCfg.Database = name }
func (c *Config) SetExecutorRowCap(n int)         { c.ExecutorCfg.RowCap = n }
func (c *Config) SetServerListenAddr(addr string) { c.ServerCfg.ListenAddr = addr }

// LoggerConfig defines all settings related to logging.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Neo4jConfig holds the graph database connection details.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri" yaml:"uri"`
	Username              string        `mapstructure:"username" yaml:"username"`
	Password              string        `mapstructure:"password" yaml:"-"`
	Database              string        `mapstructure:"database" yaml:"database"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	AcquireTimeout        time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
	QueryTimeout          time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	MaxConnectionLifetime time.Duration `mapstructure:"max_connection_lifetime" yaml:"max_connection_lifetime"`
	MaxPoolSize           int           `mapstructure:"max_pool_size" yaml:"max_pool_size"`
}

// ExecutorConfig bounds a single query execution.
type ExecutorConfig struct {
	RowCap               int           `mapstructure:"row_cap" yaml:"row_cap"`
	MaxRetries           int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval" yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval" yaml:"retry_max_interval"`
}

// SchemaConfig controls schema discovery.
type SchemaConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	// SampleProperties enables the property-key discovery queries. Without it
	// the snapshot carries labels and relationship types only.
	SampleProperties bool `mapstructure:"sample_properties" yaml:"sample_properties"`
}

// ServerConfig holds the tool bridge's HTTP settings.
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst          int           `mapstructure:"burst" yaml:"burst"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// AuditConfig enables the optional PostgreSQL query history.
type AuditConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
	RecentLimit int    `mapstructure:"recent_limit" yaml:"recent_limit"`
}

// NewDefaultConfig creates a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults registers every default value with v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cypherguard")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Neo4j --
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.connect_timeout", "10s")
	v.SetDefault("neo4j.acquire_timeout", "10s")
	v.SetDefault("neo4j.query_timeout", "30s")
	v.SetDefault("neo4j.max_connection_lifetime", "30m")
	v.SetDefault("neo4j.max_pool_size", 50)

	// -- Executor --
	v.SetDefault("executor.row_cap", 1000)
	v.SetDefault("executor.max_retries", 3)
	v.SetDefault("executor.retry_initial_interval", "200ms")
	v.SetDefault("executor.retry_max_interval", "2s")

	// -- Schema --
	v.SetDefault("schema.fetch_timeout", "30s")
	v.SetDefault("schema.sample_properties", true)

	// -- Server --
	v.SetDefault("server.listen_addr", "127.0.0.1:8088")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// -- Audit --
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.database_url", "")
	v.SetDefault("audit.recent_limit", 50)
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The conventional driver variables are honoured alongside the prefixed ones.
	_ = v.BindEnv("neo4j.uri", "CYPHERGUARD_NEO4J_URI", "NEO4J_URI")
	_ = v.BindEnv("neo4j.username", "CYPHERGUARD_NEO4J_USERNAME", "NEO4J_USERNAME")
	_ = v.BindEnv("neo4j.password", "CYPHERGUARD_NEO4J_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("neo4j.database", "CYPHERGUARD_NEO4J_DATABASE", "NEO4J_DATABASE")
	_ = v.BindEnv("audit.database_url", "CYPHERGUARD_AUDIT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Neo4jCfg.Validate(); err != nil {
		return fmt.Errorf("neo4j configuration invalid: %w", err)
	}
	if err := c.ExecutorCfg.Validate(); err != nil {
		return fmt.Errorf("executor configuration invalid: %w", err)
	}
	if c.SchemaCfg.FetchTimeout <= 0 {
		return fmt.Errorf("schema.fetch_timeout must be positive")
	}
	if err := c.ServerCfg.Validate(); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}
	if c.AuditCfg.Enabled && c.AuditCfg.DatabaseURL == "" {
		return fmt.Errorf("audit.database_url is required when audit.enabled is true")
	}
	return nil
}

var supportedSchemes = map[string]bool{
	"bolt": true, "bolt+s": true, "bolt+ssc": true,
	"neo4j": true, "neo4j+s": true, "neo4j+ssc": true,
}

// Validate checks the connection settings. Credentials embedded in the URI
// are rejected so they cannot end up in logs.
func (n *Neo4jConfig) Validate() error {
	if n.URI == "" {
		return fmt.Errorf("neo4j.uri is required")
	}
	u, err := url.Parse(n.URI)
	if err != nil {
		return fmt.Errorf("neo4j.uri is not a valid URI")
	}
	if !supportedSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("neo4j.uri scheme %q is not supported", u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("neo4j.uri must not embed credentials; use neo4j.username and neo4j.password")
	}
	if n.Username == "" {
		return fmt.Errorf("neo4j.username is required")
	}
	if n.Database == "" {
		return fmt.Errorf("neo4j.database is required")
	}
	if n.ConnectTimeout <= 0 || n.AcquireTimeout <= 0 || n.QueryTimeout <= 0 {
		return fmt.Errorf("neo4j timeouts must be positive")
	}
	if n.MaxPoolSize <= 0 {
		return fmt.Errorf("neo4j.max_pool_size must be a positive integer")
	}
	return nil
}

// Validate checks the execution bounds.
func (e *ExecutorConfig) Validate() error {
	if e.RowCap <= 0 {
		return fmt.Errorf("executor.row_cap must be a positive integer")
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("executor.max_retries must not be negative")
	}
	if e.RetryInitialInterval <= 0 || e.RetryMaxInterval < e.RetryInitialInterval {
		return fmt.Errorf("executor retry intervals must be positive and max >= initial")
	}
	return nil
}

// Validate checks the HTTP bridge settings.
func (s *ServerConfig) Validate() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if s.RateLimit <= 0 || s.Burst <= 0 {
		return fmt.Errorf("server.rate_limit and server.burst must be positive")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	return nil
}
