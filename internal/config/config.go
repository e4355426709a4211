// Package config loads pgreindex settings from flags, environment, dotenv
// files and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/satishbabariya/pgreindex/internal/adapters/database"
	"github.com/satishbabariya/pgreindex/internal/adapters/telemetry"
	"github.com/satishbabariya/pgreindex/internal/core/index/auditor"
	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
	"github.com/satishbabariya/pgreindex/internal/service"
)

// AppFs is the filesystem config and dotenv files are read from.
var AppFs = afero.NewOsFs()

// EnvPrefix prefixes every environment variable, e.g. PGREINDEX_HOST.
const EnvPrefix = "PGREINDEX"

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	Pattern       string
	Offset        int
	Limit         int
	Threshold     int64
	Index         string
	InvalidPolicy string
	Checks        []string
	DryRun        bool

	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
	LockTimeout      time.Duration

	Metrics MetricsConfig
	Log     LogConfig
	NoColor bool

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string
}

// MetricsConfig selects telemetry exporters.
type MetricsConfig struct {
	Type           string
	PushgatewayURL string
	TextfilePath   string
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string
	JSON  bool
}

// flagKeys maps flag names to config keys where they differ beyond dashes.
var flagKeys = map[string]string{
	"metrics":          "metrics.type",
	"pushgateway-url":  "metrics.pushgateway_url",
	"metrics-textfile": "metrics.textfile_path",
	"log-level":        "log.level",
	"log-json":         "log.json",
}

// libpq variables honoured after their PGREINDEX_ counterparts.
var libpqEnv = map[string]string{
	"host":     "PGHOST",
	"port":     "PGPORT",
	"user":     "PGUSER",
	"password": "PGPASSWORD",
	"sslmode":  "PGSSLMODE",
}

var validSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetFs(AppFs)

	v.SetDefault("host", "localhost")
	v.SetDefault("port", 5432)
	v.SetDefault("user", "postgres")
	v.SetDefault("dbname", "postgres")
	v.SetDefault("pattern", "%")
	v.SetDefault("offset", 0)
	v.SetDefault("limit", 10)
	v.SetDefault("threshold", auditor.DefaultThresholdBytes)
	v.SetDefault("invalid_policy", string(domain.DefaultInvalidPolicy))
	v.SetDefault("checks", []string{"invalid", "oversized"})
	v.SetDefault("metrics.type", "noop")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, fallback := range libpqEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), fallback)
	}

	return v
}

// BindFlags binds every flag of flags to its config key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

// Load reads dotenv files and the config file, then resolves every key.
// configFile overrides the search for .pgreindex.yaml.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".pgreindex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "pgreindex"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
		}
	}

	cfg := &Config{
		Host:     v.GetString("host"),
		Port:     v.GetInt("port"),
		User:     v.GetString("user"),
		Password: v.GetString("password"),
		DBName:   v.GetString("dbname"),
		SSLMode:  v.GetString("sslmode"),

		Pattern:       v.GetString("pattern"),
		Offset:        v.GetInt("offset"),
		Limit:         v.GetInt("limit"),
		Threshold:     v.GetInt64("threshold"),
		Index:         v.GetString("index"),
		InvalidPolicy: v.GetString("invalid_policy"),
		Checks:        splitList(v.GetStringSlice("checks")),
		DryRun:        v.GetBool("dry_run"),

		ConnectTimeout:   v.GetDuration("connect_timeout"),
		StatementTimeout: v.GetDuration("statement_timeout"),
		LockTimeout:      v.GetDuration("lock_timeout"),

		Metrics: MetricsConfig{
			Type:           v.GetString("metrics.type"),
			PushgatewayURL: v.GetString("metrics.pushgateway_url"),
			TextfilePath:   v.GetString("metrics.textfile_path"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
		NoColor:    v.GetBool("no_color"),
		ConfigFile: v.ConfigFileUsed(),
	}

	return cfg, nil
}

// loadDotEnv loads .env then .env.local. Variables already in the
// environment win over .env; .env.local overrides both.
func loadDotEnv() error {
	for _, file := range []struct {
		name     string
		override bool
	}{
		{".env", false},
		{".env.local", true},
	} {
		if _, err := AppFs.Stat(file.name); err != nil {
			continue
		}
		f, err := AppFs.Open(file.name)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file.name, err)
		}
		vars, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, file.name, err)
		}
		for key, value := range vars {
			if _, set := os.LookupEnv(key); set && !file.override {
				continue
			}
			os.Setenv(key, value)
		}
	}
	return nil
}

// splitList accepts both repeated values and comma-separated strings.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the configuration before anything connects.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	if c.Host == "" {
		invalid("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		invalid("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.User == "" {
		invalid("user is required")
	}
	if c.SSLMode != "" && !contains(validSSLModes, c.SSLMode) {
		invalid("sslmode must be one of %s, got %q", strings.Join(validSSLModes, ", "), c.SSLMode)
	}
	if c.Offset < 0 {
		invalid("offset must be >= 0, got %d", c.Offset)
	}
	if c.Limit < 0 {
		invalid("limit must be >= 0, got %d", c.Limit)
	}

	checks, err := domain.ParseChecks(c.Checks)
	if err != nil {
		invalid("%v", err)
	} else if checks.Has(domain.CheckOversized) && c.Threshold <= 0 {
		invalid("threshold must be positive, got %d", c.Threshold)
	}
	if _, err := domain.ParseInvalidPolicy(c.InvalidPolicy); err != nil {
		invalid("%v", err)
	}
	if c.Index != "" {
		if _, err := domain.ParseIndexName(c.Index, "public"); err != nil {
			invalid("%v", err)
		}
	}
	for name, d := range map[string]time.Duration{
		"connect_timeout":   c.ConnectTimeout,
		"statement_timeout": c.StatementTimeout,
		"lock_timeout":      c.LockTimeout,
	} {
		if d < 0 {
			invalid("%s must not be negative", name)
		}
	}
	if _, err := telemetry.NewTelemetry(&telemetry.Config{Type: c.Metrics.Type}); err != nil {
		invalid("%v", err)
	}

	return errors.Join(errs...)
}

// DatabaseConfig returns the connection settings of the administrative
// session.
func (c *Config) DatabaseConfig(applicationName string) database.Config {
	return database.Config{
		Host:             c.Host,
		Port:             c.Port,
		User:             c.User,
		Password:         c.Password,
		DBName:           c.DBName,
		SSLMode:          c.SSLMode,
		ApplicationName:  applicationName,
		ConnectTimeout:   c.ConnectTimeout,
		StatementTimeout: c.StatementTimeout,
		LockTimeout:      c.LockTimeout,
	}
}

// RunInput returns the maintenance run parameters.
func (c *Config) RunInput() (service.RunInput, error) {
	checks, err := domain.ParseChecks(c.Checks)
	if err != nil {
		return service.RunInput{}, err
	}
	policy, err := domain.ParseInvalidPolicy(c.InvalidPolicy)
	if err != nil {
		return service.RunInput{}, err
	}
	return service.RunInput{
		Pattern:        c.Pattern,
		Offset:         c.Offset,
		Limit:          c.Limit,
		ThresholdBytes: c.Threshold,
		Index:          c.Index,
		Policy:         policy,
		Checks:         checks,
		DryRun:         c.DryRun,
	}, nil
}

// String implements fmt.Stringer. The password is never included.
func (c *Config) String() string {
	password := "unset"
	if c.Password != "" {
		password = "set"
	}
	return fmt.Sprintf(
		"%s sslmode=%q password=%s pattern=%q offset=%d limit=%d threshold=%d index=%q policy=%s checks=%s dry_run=%t",
		c.DatabaseConfig("").String(), c.SSLMode, password, c.Pattern, c.Offset, c.Limit,
		c.Threshold, c.Index, c.InvalidPolicy, strings.Join(c.Checks, ","), c.DryRun,
	)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
