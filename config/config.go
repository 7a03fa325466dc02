// Package config loads runtime configuration via Viper: defaults first, then
// an optional config file, then INVENTORY_* environment variables on top.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups everything the binaries need at startup.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	DB     DBConfig
	HTTP   HTTPConfig
	Log    LogConfig
	Ledger LedgerConfig
}

type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// StoreConfig selects and tunes the snapshot store.
type StoreConfig struct {
	// Backend is one of: file, sqlite, postgres, memory.
	Backend string

	// Path is the snapshot file (file backend) or database file (sqlite).
	Path string

	// LockTimeout bounds how long a writer waits for the store lock before
	// giving up; LockPoll is the retry interval while waiting.
	LockTimeout time.Duration
	LockPoll    time.Duration

	// BackupDir holds pre-save snapshot copies; empty means a backups/
	// directory next to Path. BackupRetention caps how many are kept.
	BackupDir       string
	BackupRetention int
}

// DBConfig is the PostgreSQL backend connection. DatabaseURL, when set, wins
// over the individual fields.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString returns DatabaseURL when set, otherwise the assembled DSN.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// Addr returns the listen address (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string

	// Pretty switches to the human console writer instead of JSON.
	Pretty bool
}

// LedgerConfig carries domain knobs.
type LedgerConfig struct {
	// UnlimitedNames overrides the built-in unlimited-utility list. Empty
	// keeps the default water names.
	UnlimitedNames []string
}

// Load reads configuration: built-in defaults, then inventory.yaml from the
// working directory or ./config if present, then environment variables
// prefixed INVENTORY_ (INVENTORY_HTTP_PORT, INVENTORY_STORE_BACKEND, ...).
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("inventory")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Name: v.GetString("app.name"),
		},
		Store: StoreConfig{
			Backend:         v.GetString("store.backend"),
			Path:            v.GetString("store.path"),
			LockTimeout:     v.GetDuration("store.lock_timeout"),
			LockPoll:        v.GetDuration("store.lock_poll"),
			BackupDir:       v.GetString("store.backup_dir"),
			BackupRetention: v.GetInt("store.backup_retention"),
		},
		DB: DBConfig{
			DatabaseURL: v.GetString("db.database_url"),
			Host:        v.GetString("db.host"),
			Port:        v.GetInt("db.port"),
			User:        v.GetString("db.user"),
			Password:    v.GetString("db.password"),
			DBName:      v.GetString("db.name"),
			SSLMode:     v.GetString("db.sslmode"),
		},
		HTTP: HTTPConfig{
			Host:            v.GetString("http.host"),
			Port:            v.GetInt("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			CORSOrigins:     v.GetStringSlice("http.cors_origins"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		Ledger: LedgerConfig{
			UnlimitedNames: v.GetStringSlice("ledger.unlimited_names"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.name", "inventory-engine")

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "data/inventory.json")
	v.SetDefault("store.lock_timeout", 10*time.Second)
	v.SetDefault("store.lock_poll", 50*time.Millisecond)
	v.SetDefault("store.backup_dir", "")
	v.SetDefault("store.backup_retention", 50)

	v.SetDefault("db.database_url", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "inventory")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("ledger.unlimited_names", []string{})
}
