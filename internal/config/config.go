package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int                `json:"port"`
	LogConfig     logger.LogConfig   `json:"log_config"`
	Storage       string             `json:"storage"`
	Database      DatabaseConfig     `json:"database"`
	Admin         AdminConfig        `json:"admin"`
	Verification  VerificationConfig `json:"verification"`
	Notifier      NotifierConfig     `json:"notifier"`
	RateLimitMs   int                `json:"rate_limit_ms"`
	CORSAllowlist []string           `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN                    string `json:"dsn"`
	Host                   string `json:"host"`
	Port                   int    `json:"port"`
	User                   string `json:"user"`
	Password               string `json:"password"`
	DBName                 string `json:"dbname"`
	SSLMode                string `json:"sslmode"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	TxTimeoutSeconds       int    `json:"tx_timeout_seconds"`
}

func (c DatabaseConfig) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}

type AdminConfig struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	JWTSecret    string `json:"jwt_secret"`
	JWTTTLHours  int    `json:"jwt_ttl_hours"`
}

type VerificationConfig struct {
	ClockSkewSeconds       int    `json:"clock_skew_seconds"`
	RequestTTLSeconds      int    `json:"request_ttl_seconds"`
	NotificationTTLSeconds int    `json:"notification_ttl_seconds"`
	NotificationTitle      string `json:"notification_title"`
}

type NotifierConfig struct {
	// Embedded runs the dispatcher inside the web process.
	Embedded  bool        `json:"embedded"`
	Schedule  string      `json:"schedule"`
	BatchSize int         `json:"batch_size"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const (
	DefaultClockSkewSeconds       = 300
	DefaultRequestTTLSeconds      = 300
	DefaultNotificationTTLSeconds = 900
	DefaultNotificationTitle      = "Simurgh Identity Verification System"
	DefaultNotifierSchedule       = "@every 10s"
	DefaultNotifierBatchSize      = 100
)

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(&cfg.Database)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets container deployments override database credentials without
// editing the config file.
func applyEnv(db *DatabaseConfig) {
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		db.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		db.Password = v
	}
	if v := os.Getenv("POSTGRES_ADDR"); v != "" {
		db.Host = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		db.DBName = v
	}
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	switch cfg.Storage {
	case "":
		cfg.Storage = StoragePostgres
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unsupported storage: %s", cfg.Storage)
	}
	if cfg.Storage == StoragePostgres && cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeSeconds == 0 {
		cfg.Database.ConnMaxLifetimeSeconds = 1800
	}
	if cfg.Database.TxTimeoutSeconds == 0 {
		cfg.Database.TxTimeoutSeconds = 5
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required")
	}
	if cfg.Admin.Username == "" || cfg.Admin.PasswordHash == "" {
		return fmt.Errorf("admin.username and admin.password_hash are required")
	}
	if cfg.Admin.JWTTTLHours == 0 {
		cfg.Admin.JWTTTLHours = 12
	}
	v := &cfg.Verification
	if v.ClockSkewSeconds == 0 {
		v.ClockSkewSeconds = DefaultClockSkewSeconds
	}
	if v.RequestTTLSeconds == 0 {
		v.RequestTTLSeconds = DefaultRequestTTLSeconds
	}
	if v.NotificationTTLSeconds == 0 {
		v.NotificationTTLSeconds = DefaultNotificationTTLSeconds
	}
	if v.NotificationTTLSeconds < v.RequestTTLSeconds {
		return fmt.Errorf("verification.notification_ttl_seconds must not be shorter than request_ttl_seconds")
	}
	if strings.TrimSpace(v.NotificationTitle) == "" {
		v.NotificationTitle = DefaultNotificationTitle
	}
	n := &cfg.Notifier
	if n.Schedule == "" {
		n.Schedule = DefaultNotifierSchedule
	}
	if n.BatchSize <= 0 {
		n.BatchSize = DefaultNotifierBatchSize
	}
	if n.Type == "" {
		n.Type = "log"
	}
	if cfg.RateLimitMs < 0 {
		cfg.RateLimitMs = 0
	}
	return nil
}
