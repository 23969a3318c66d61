package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/937bb/937cms-sub001/internal/vod"
	"github.com/937bb/937cms-sub001/pkg/database"
)

var (
	// ErrMissing marks required settings that are absent.
	ErrMissing = errors.New("configuration missing")
	// ErrInvalid marks settings that are present but unusable.
	ErrInvalid = errors.New("configuration invalid")
)

const (
	DefaultPageSize  = 100
	DefaultFileName  = "vodsync.yaml"
	defaultTokenTTL  = 12 * time.Hour
	defaultJWTIssuer = "vodsync"
)

// Config is the whole vodsync configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Sync      SyncConfig      `yaml:"sync"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig points at the CMS database that holds both the legacy and
// the normalized tables. DSN wins over the discrete fields when set.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`         // mysql, postgres, sqlite3
	DSN          string `yaml:"dsn"`            // Driver-specific DSN (overrides the fields below)
	Host         string `yaml:"host"`           // Server host
	Port         int    `yaml:"port"`           // Server port (driver default when 0)
	User         string `yaml:"user"`           // Login user
	Password     string `yaml:"password"`       // Login password
	Name         string `yaml:"name"`           // Database name, or file path for sqlite3
	Params       string `yaml:"params"`         // Extra DSN query parameters
	MaxOpenConns int    `yaml:"max_open_conns"` // Pool size (0 = driver default)
}

// SyncConfig tunes a resync run.
type SyncConfig struct {
	PageSize              int    `yaml:"page_size"`                // Legacy rows per page
	Pagination            string `yaml:"pagination"`               // offset or keyset
	ContinueOnRecordError bool   `yaml:"continue_on_record_error"` // Skip and log failing records instead of aborting
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	TCPAddr  string `yaml:"tcp_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

type AuthConfig struct {
	JWTSecret            string        `yaml:"jwt_secret"`
	JWTIssuer            string        `yaml:"jwt_issuer"`
	TokenTTL             time.Duration `yaml:"token_ttl"`
	OperatorUser         string        `yaml:"operator_user"`
	OperatorPasswordHash string        `yaml:"operator_password_hash"` // bcrypt, see `vodsync hash-password`
}

type TelemetryConfig struct {
	SentryDSN   string `yaml:"sentry_dsn"`
	Environment string `yaml:"environment"`
	Release     string `yaml:"release"`
}

// Default returns a config with every optional value filled in.
func Default() Config {
	return Config{
		Sync: SyncConfig{
			PageSize:   DefaultPageSize,
			Pagination: string(vod.ModeOffset),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			HTTPAddr: ":8080",
			TCPAddr:  ":7070",
			GRPCAddr: ":9090",
		},
		Auth: AuthConfig{
			JWTIssuer:    defaultJWTIssuer,
			TokenTTL:     defaultTokenTTL,
			OperatorUser: "admin",
		},
		Telemetry: TelemetryConfig{
			Environment: "development",
		},
	}
}

// DefaultPath is $VODSYNC_CONFIG, else $CMS_DATA_DIR/vodsync.yaml, else
// ./data/vodsync.yaml.
func DefaultPath() string {
	if p := os.Getenv("VODSYNC_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("CMS_DATA_DIR")
	if dir == "" {
		dir = "data"
	}
	return filepath.Join(dir, DefaultFileName)
}

// Load reads path (a missing file is fine), applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, v)
		}
		*dst = n
		return nil
	}

	setString(&c.Database.Driver, "VODSYNC_DB_DRIVER")
	setString(&c.Database.DSN, "VODSYNC_DB_DSN")
	setString(&c.Database.Host, "VODSYNC_DB_HOST")
	setString(&c.Database.User, "VODSYNC_DB_USER")
	setString(&c.Database.Password, "VODSYNC_DB_PASSWORD")
	setString(&c.Database.Name, "VODSYNC_DB_NAME")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Telemetry.SentryDSN, "SENTRY_DSN")
	setString(&c.Auth.JWTSecret, "VODSYNC_JWT_SECRET")

	if err := setInt(&c.Database.Port, "VODSYNC_DB_PORT"); err != nil {
		return err
	}
	return setInt(&c.Sync.PageSize, "VODSYNC_PAGE_SIZE")
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = d.Sync.PageSize
	}
	if c.Sync.Pagination == "" {
		c.Sync.Pagination = d.Sync.Pagination
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Auth.JWTIssuer == "" {
		c.Auth.JWTIssuer = d.Auth.JWTIssuer
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = d.Auth.TokenTTL
	}
}

// Validate checks the database and sync sections. Server and auth settings
// are checked by the commands that need them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Driver) == "" {
		return fmt.Errorf("%w: database.driver", ErrMissing)
	}
	d, err := database.ParseDialect(c.Database.Driver)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Database.DSN == "" {
		if c.Database.Name == "" {
			return fmt.Errorf("%w: database.name or database.dsn", ErrMissing)
		}
		if d != database.SQLite && c.Database.Host == "" {
			return fmt.Errorf("%w: database.host or database.dsn", ErrMissing)
		}
	}

	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("%w: sync.page_size must be positive, got %d", ErrInvalid, c.Sync.PageSize)
	}
	if _, err := vod.ParseMode(c.Sync.Pagination); err != nil {
		return fmt.Errorf("%w: sync.pagination: %v", ErrInvalid, err)
	}
	return nil
}

// Dialect is only meaningful on a validated config.
func (d DatabaseConfig) Dialect() database.Dialect {
	dialect, _ := database.ParseDialect(d.Driver)
	return dialect
}

// DataSourceName builds the driver DSN from the discrete fields unless DSN
// is set.
func (d DatabaseConfig) DataSourceName() string {
	if d.DSN != "" {
		return d.DSN
	}

	switch d.Dialect() {
	case database.MySQL:
		port := d.Port
		if port == 0 {
			port = 3306
		}
		params := "charset=utf8mb4&parseTime=true"
		if d.Params != "" {
			params += "&" + strings.TrimPrefix(d.Params, "?")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s",
			d.User, d.Password, net.JoinHostPort(d.Host, strconv.Itoa(port)), d.Name, params)
	case database.Postgres:
		port := d.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(port)),
			Path:   "/" + d.Name,
		}
		q := "sslmode=disable"
		if d.Params != "" {
			q = strings.TrimPrefix(d.Params, "?")
		}
		u.RawQuery = q
		return u.String()
	default:
		return d.Name
	}
}

// Database converts the section into a pkg/database config.
func (d DatabaseConfig) Database() database.Config {
	return database.Config{
		Dialect:      d.Dialect(),
		DSN:          d.DataSourceName(),
		MaxOpenConns: d.MaxOpenConns,
	}
}

// Mode is only meaningful on a validated config.
func (s SyncConfig) Mode() vod.Mode {
	m, _ := vod.ParseMode(s.Pagination)
	return m
}
