package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/commerce-gateway/tokens"
)

// Service names, used to pick per-binary defaults and label metrics
const (
	ServiceGateway = "api-gateway"
	ServiceAuth    = "auth-service"
	ServiceAgent   = "agent-service"
)

var defaultPorts = map[string]int{
	ServiceGateway: 8888,
	ServiceAuth:    8081,
	ServiceAgent:   8087,
}

// DefaultPublicPaths are reachable without a token
var DefaultPublicPaths = []string{
	"/auth-service/api/auth/login",
	"/auth-service/login",
	"/healthz",
	"/readyz",
}

// DefaultAdminPaths require the ADMIN role
var DefaultAdminPaths = []string{
	"/produit-service/produits",
	"/client-service/clients",
	"/commande-service/commandes",
	"/auth-service/api/auth/users",
	"/auth-service/api/auth/roles",
	"/auth-service/api/auth/addRoleToUser",
}

// DefaultRoutes maps gateway prefixes to upstream services
var DefaultRoutes = map[string]string{
	"/auth-service":     "http://localhost:8081",
	"/agent-ia-service": "http://localhost:8087",
	"/produit-service":  "http://localhost:8082",
	"/client-service":   "http://localhost:8083",
	"/commande-service": "http://localhost:8084",
}

// Config represents the complete application configuration
type Config struct {
	Service       string
	Server        ServerConfig
	Database      DatabaseConfig
	Token         TokenConfig
	Bootstrap     BootstrapConfig
	Gateway       GatewayConfig
	Chat          ChatConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	InitSchema       bool
}

// TokenConfig holds the shared signing parameters. Every binary must load the same values.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	ClockSkew time.Duration
	Issuer    string
}

// BootstrapConfig seeds the first administrator on an empty store
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
}

// GatewayConfig holds the edge route table and rule lists
type GatewayConfig struct {
	PublicPaths []string
	AdminPaths  []string
	Routes      map[string]string
	PolicyFile  string
}

// ChatConfig holds the conversational endpoint settings
type ChatConfig struct {
	MemoryWindow int
	Model        string
	Temperature  float64
	// UserIntents is the non-admin allow list; nil keeps the built-in table
	UserIntents []string
}

// ProvidersConfig holds generative backend configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig
}

// OpenAIConfig holds OpenAI-compatible provider configuration
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance for service by loading environment variables
func New(ctx context.Context, service string) (*Config, error) {
	_ = godotenv.Load(".env")

	secret, err := loadSecret()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Service:     service,
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(defaultPorts[service]),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:4200"}),
		},
		Database: loadDatabaseConfig(),
		Token: TokenConfig{
			Secret:    secret,
			Algorithm: strings.ToUpper(getEnv("JWT_ALGORITHM", tokens.DefaultAlgorithm)),
			TTL:       getEnvAsDuration("JWT_TTL", tokens.DefaultTTL),
			ClockSkew: getEnvAsDuration("JWT_CLOCK_SKEW", tokens.DefaultClockSkew),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("BOOTSTRAP_ADMIN_USERNAME", ""),
			AdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Gateway: GatewayConfig{
			PublicPaths: getEnvAsList("GATEWAY_PUBLIC_PATHS", DefaultPublicPaths),
			AdminPaths:  getEnvAsList("GATEWAY_ADMIN_PATHS", DefaultAdminPaths),
			Routes:      DefaultRoutes,
			PolicyFile:  getEnv("ACCESS_POLICY_FILE", ""),
		},
		Chat: ChatConfig{
			MemoryWindow: getEnvAsInt("CHAT_MEMORY_WINDOW", 10),
			Model:        getEnv("CHAT_MODEL", "gpt-4o-mini"),
			Temperature:  getEnvAsFloat("CHAT_TEMPERATURE", 0.2),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout:    getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if raw := os.Getenv("GATEWAY_ROUTES"); raw != "" {
		routes, err := ParseRoutes(raw)
		if err != nil {
			return nil, err
		}
		cfg.Gateway.Routes = routes
	}

	if cfg.Gateway.PolicyFile != "" {
		policy, err := LoadAccessPolicy(cfg.Gateway.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy.Apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if err := c.Token.Tokens().Validate(); err != nil {
		return fmt.Errorf("token configuration: %w", err)
	}

	if c.Service == ServiceAuth {
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	}

	if (c.Bootstrap.AdminUsername == "") != (c.Bootstrap.AdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}

	if c.Service == ServiceGateway && len(c.Gateway.Routes) == 0 {
		return fmt.Errorf("at least one gateway route is required")
	}

	if c.Service == ServiceAgent && c.IsProduction() && c.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required in production")
	}

	if c.Chat.MemoryWindow < 0 {
		return fmt.Errorf("chat memory window must not be negative")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Tokens returns the issuer/verifier parameters
func (c TokenConfig) Tokens() tokens.Config {
	return tokens.Config{
		Secret:    c.Secret,
		Algorithm: c.Algorithm,
		TTL:       c.TTL,
		ClockSkew: c.ClockSkew,
		Issuer:    c.Issuer,
	}
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseRoutes parses "/prefix=http://host:port,..." into a route table
func ParseRoutes(raw string) (map[string]string, error) {
	routes := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, upstream, ok := strings.Cut(entry, "=")
		prefix, upstream = strings.TrimSpace(prefix), strings.TrimSpace(upstream)
		if !ok || prefix == "" || upstream == "" {
			return nil, fmt.Errorf("invalid GATEWAY_ROUTES entry %q", entry)
		}
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		routes[prefix] = upstream
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("GATEWAY_ROUTES is set but empty")
	}
	return routes, nil
}

// loadSecret reads JWT_SECRET, base64-decoding it when JWT_SECRET_BASE64 is true
func loadSecret() ([]byte, error) {
	raw := os.Getenv("JWT_SECRET")
	if raw == "" {
		return nil, nil
	}
	if !getEnvAsBool("JWT_SECRET_BASE64", false) {
		return []byte(raw), nil
	}
	secret, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET is not valid base64: %w", err)
	}
	return secret, nil
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      getEnvAsBool("DB_INIT_SCHEMA", true),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "dev")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "auth")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars
func getPort(defaultPort int) int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if defaultPort == 0 {
		return 8080
	}
	return defaultPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
