package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Engine     EngineConfig
	SMTP       SMTPConfig
	ServiceBus ServiceBusConfig
	Notifier   NotifierConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret            string
	StreamTokenExpiry time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// EngineConfig tunes the parallel payroll engine.
type EngineConfig struct {
	MaxConcurrency  int
	ConcurrencyCap  int
	ProgressBuffer  int
	ProgressPolicy  string
	RunTimeout      time.Duration // 0 means no bound
	StaleRunAfter   time.Duration
	StaleRunCheck   time.Duration
	ShutdownTimeout time.Duration
}

// SMTPConfig holds outgoing mail configuration. An empty Host disables mail.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// ServiceBusConfig enables the run-completed publisher when ConnectionString is set.
type ServiceBusConfig struct {
	ConnectionString string
	Queue            string
}

type NotifierConfig struct {
	Recipients []string // run summary email recipients
}

func Load() (*Config, error) {
	// The .env file is optional; the environment wins when both are set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 25)
	if err != nil {
		return nil, err
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "multiweave"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: maxConns,
		MinConns: minConns,
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}
	if len(config.App.AllowedOrigins) == 0 {
		config.App.AllowedOrigins = []string{"http://localhost:3000"}
	}

	// JWT configuration
	streamExpiry, err := getEnvDuration("JWT_STREAM_TOKEN_EXPIRATION_TIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	config.JWT = JWTConfig{
		Secret:            getEnv("JWT_SECRET_KEY", ""),
		StreamTokenExpiry: streamExpiry,
	}

	// Payroll engine configuration
	if config.Engine, err = loadEngine(); err != nil {
		return nil, err
	}

	// SMTP configuration
	smtpPort, err := getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	config.SMTP = SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     smtpPort,
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "folha@multiweave.local"),
		FromName: getEnv("SMTP_FROM_NAME", "MultiWeave Folha"),
	}

	config.ServiceBus = ServiceBusConfig{
		ConnectionString: getEnv("SERVICEBUS_CONNECTION_STRING", ""),
		Queue:            getEnv("SERVICEBUS_QUEUE", "payroll-runs"),
	}

	config.Notifier = NotifierConfig{
		Recipients: getEnvSlice("PAYROLL_NOTIFY_RECIPIENTS"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadEngine() (EngineConfig, error) {
	var (
		cfg EngineConfig
		err error
	)
	if cfg.MaxConcurrency, err = getEnvInt("PAYROLL_MAX_CONCURRENCY", 4); err != nil {
		return cfg, err
	}
	if cfg.ConcurrencyCap, err = getEnvInt("PAYROLL_CONCURRENCY_CAP", 16); err != nil {
		return cfg, err
	}
	if cfg.ProgressBuffer, err = getEnvInt("PAYROLL_PROGRESS_BUFFER", 32); err != nil {
		return cfg, err
	}
	cfg.ProgressPolicy = getEnv("PAYROLL_PROGRESS_POLICY", "drop_oldest")
	if cfg.RunTimeout, err = getEnvDuration("PAYROLL_RUN_TIMEOUT", 0); err != nil {
		return cfg, err
	}
	if cfg.StaleRunAfter, err = getEnvDuration("PAYROLL_STALE_RUN_AFTER", 2*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.StaleRunCheck, err = getEnvDuration("PAYROLL_STALE_RUN_CHECK_INTERVAL", 15*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Engine.MaxConcurrency < 1 {
		return fmt.Errorf("PAYROLL_MAX_CONCURRENCY must be at least 1")
	}
	if c.Engine.ConcurrencyCap < c.Engine.MaxConcurrency {
		return fmt.Errorf("PAYROLL_CONCURRENCY_CAP must not be lower than PAYROLL_MAX_CONCURRENCY")
	}
	if c.Engine.ProgressBuffer < 1 {
		return fmt.Errorf("PAYROLL_PROGRESS_BUFFER must be at least 1")
	}
	switch c.Engine.ProgressPolicy {
	case "drop_oldest", "block":
	default:
		return fmt.Errorf("PAYROLL_PROGRESS_POLICY must be drop_oldest or block")
	}
	if c.Engine.RunTimeout < 0 {
		return fmt.Errorf("PAYROLL_RUN_TIMEOUT must not be negative")
	}
	if c.Engine.StaleRunAfter <= 0 {
		return fmt.Errorf("PAYROLL_STALE_RUN_AFTER must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
