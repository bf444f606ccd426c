// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/cockroachdb/apd/v3"
)

// GeneratorDefaults are the values used when a full identity-generator block
// has to be synthesized during structural repair. They are deployment
// configuration, not algorithm constants.
type GeneratorDefaults struct {
	Generation string `env:"GENERATOR_GENERATION" envDefault:"DEFAULT"`
	Increment  string `env:"GENERATOR_INCREMENT" envDefault:"1"`
	MinValue   string `env:"GENERATOR_MINVALUE" envDefault:"1"`
	MaxValue   string `env:"GENERATOR_MAXVALUE" envDefault:"9999999999999999999999999999"`
	Cache      string `env:"GENERATOR_CACHE" envDefault:"20"`
}

// LookupDBConfig describes the optional database the START_WITH provider
// queries for freshly synthesized generators.
type LookupDBConfig struct {
	Dialect  string `env:"DIALECT"` // "oracle" or "postgres"; empty disables the lookup
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"1521"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	DBName   string `env:"DBNAME"` // Oracle service name or Postgres database
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

type Config struct {
	// Scan Settings
	ScanDir      string        `env:"SCAN_DIR"`
	Workers      int           `env:"WORKERS" envDefault:"8"`
	FileTimeout  time.Duration `env:"FILE_TIMEOUT" envDefault:"30s"` // Max time for one file (repair+reconcile+rewrite)
	MarkerPrefix string        `env:"MARKER_PREFIX" envDefault:"-- sqlcl_snapshot"`
	DryRun       bool          `env:"DRY_RUN" envDefault:"false"` // Reconcile and report, but write nothing

	// Fix behavior
	NormalizeStartWith bool `env:"NORMALIZE_START_WITH" envDefault:"false"` // Rewrite generator START_WITH values to 1
	CleanStaleReports  bool `env:"CLEAN_STALE_REPORTS" envDefault:"true"`   // Remove old .log report files before scanning

	// Version-control diff side channel
	EnableVCSDiff    bool          `env:"ENABLE_VCS_DIFF" envDefault:"false"`
	VCSMaxRetries    int           `env:"VCS_MAX_RETRIES" envDefault:"3"`
	VCSRetryInterval time.Duration `env:"VCS_RETRY_INTERVAL" envDefault:"2s"`

	// Observability & Debugging
	EnableJsonLogging bool `env:"ENABLE_JSON_LOGGING" envDefault:"false"`
	DebugMode         bool `env:"DEBUG_MODE" envDefault:"false"`
	EnablePprof       bool `env:"ENABLE_PPROF" envDefault:"false"`
	MetricsPort       int  `env:"METRICS_PORT" envDefault:"9091"`

	// Generator synthesis defaults
	Generator GeneratorDefaults

	// START_WITH lookup database (optional)
	StartWithDB LookupDBConfig `envPrefix:"STARTWITH_DB_"`

	// Vault (optional; supplies START_WITH DB credentials)
	VaultEnabled         bool   `env:"VAULT_ENABLED" envDefault:"false"`
	VaultAddr            string `env:"VAULT_ADDR" envDefault:"http://127.0.0.1:8200"`
	VaultToken           string `env:"VAULT_TOKEN"`
	VaultCACert          string `env:"VAULT_CACERT"`
	VaultSkipVerify      bool   `env:"VAULT_SKIP_VERIFY" envDefault:"false"`
	StartWithSecretPath  string `env:"STARTWITH_SECRET_PATH"`
	StartWithUsernameKey string `env:"STARTWITH_USERNAME_KEY" envDefault:"username"`
	StartWithPasswordKey string `env:"STARTWITH_PASSWORD_KEY" envDefault:"password"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	opts := env.Options{RequiredIfNoDef: false}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config parsing error: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig checks everything except ScanDir, which may still be
// supplied via CLI flag after Load (see main.go).
func validateConfig(cfg *Config) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if cfg.FileTimeout <= 0 {
		return fmt.Errorf("file timeout must be positive")
	}
	if cfg.MetricsPort < 1 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.VCSMaxRetries < 0 {
		return fmt.Errorf("VCS max retries cannot be negative")
	}
	if strings.TrimSpace(cfg.MarkerPrefix) == "" {
		return fmt.Errorf("marker prefix cannot be blank")
	}

	switch strings.ToLower(cfg.StartWithDB.Dialect) {
	case "", "oracle", "postgres":
	default:
		return fmt.Errorf("invalid START_WITH lookup dialect: %s. Valid options: oracle, postgres", cfg.StartWithDB.Dialect)
	}
	if cfg.StartWithDB.Dialect != "" {
		if cfg.StartWithDB.Host == "" || cfg.StartWithDB.DBName == "" {
			return fmt.Errorf("START_WITH lookup enabled (dialect %s) but host or dbname is missing", cfg.StartWithDB.Dialect)
		}
		if cfg.StartWithDB.Port < 1 || cfg.StartWithDB.Port > 65535 {
			return fmt.Errorf("invalid START_WITH lookup port: %d", cfg.StartWithDB.Port)
		}
	}

	// The generator numeric defaults end up inside synthesized metadata;
	// reject values that are not decimal numbers before they do.
	for name, val := range map[string]string{
		"GENERATOR_INCREMENT": cfg.Generator.Increment,
		"GENERATOR_MINVALUE":  cfg.Generator.MinValue,
		"GENERATOR_MAXVALUE":  cfg.Generator.MaxValue,
		"GENERATOR_CACHE":     cfg.Generator.Cache,
	} {
		if _, _, err := apd.NewFromString(val); err != nil {
			return fmt.Errorf("%s is not a valid number: %q", name, val)
		}
	}
	if cfg.Generator.Generation == "" {
		return fmt.Errorf("GENERATOR_GENERATION cannot be blank")
	}
	return nil
}
