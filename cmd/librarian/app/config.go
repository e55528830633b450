package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/librarian/internal/transport"
	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/sweep"
)

// envFiles are loaded in order; a variable set by an earlier file (or the
// real environment) is never overwritten by a later one.
var envFiles = []string{
	".env.local",
	".env",
	"setup/.env.setup",
}

// Config holds settings from flags, the environment, .env files and an
// optional config file.
type Config struct {
	// Global flags
	Verbose  bool
	Quiet    bool
	NoColor  bool
	Format   string
	LogLevel string

	ConfigFile string

	// Remote library
	URL         string
	TokenID     string
	TokenSecret string
	MinInterval time.Duration
	MaxAttempts int
	Timeout     time.Duration

	// Offline library snapshot used instead of the remote, if set
	SnapshotFile string

	// Naming
	HoldingGrouping   string
	HoldingCollection string
	InboxName         string

	VocabularyFile string
	OutputDir      string
	AuditDB        string

	// Logging
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// LoadConfig reads configuration in order of precedence: flags (applied
// later by UpdateFromFlags), environment, .env files, config file, defaults.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("librarian_min_interval", constants.DefaultMinInterval)
	v.SetDefault("librarian_max_attempts", constants.MaxAttempts)
	v.SetDefault("librarian_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("librarian_holding_grouping", constants.DefaultHoldingGrouping)
	v.SetDefault("librarian_holding_collection", constants.DefaultHoldingCollection)
	v.SetDefault("librarian_inbox_name", constants.DefaultInboxName)
	v.SetDefault("librarian_output_dir", constants.DefaultOutputDir)
	v.SetDefault("librarian_audit_db", constants.DefaultAuditDB)

	if file := os.Getenv("LIBRARIAN_CONFIG"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".librarian")
	}
	if err := v.ReadInConfig(); err != nil {
		var missing viper.ConfigFileNotFoundError
		if !errors.As(err, &missing) {
			return nil, errors.NewConfigError("config file", "cannot read config", err)
		}
	}

	url := v.GetString("bookstack_api_url")
	if url == "" {
		url = v.GetString("bookstack_url")
	}

	cfg := &Config{
		ConfigFile:        v.ConfigFileUsed(),
		URL:               strings.TrimRight(url, "/"),
		TokenID:           v.GetString("bookstack_token_id"),
		TokenSecret:       v.GetString("bookstack_token_secret"),
		MinInterval:       v.GetDuration("librarian_min_interval"),
		MaxAttempts:       v.GetInt("librarian_max_attempts"),
		Timeout:           v.GetDuration("librarian_timeout"),
		SnapshotFile:      v.GetString("librarian_snapshot"),
		HoldingGrouping:   v.GetString("librarian_holding_grouping"),
		HoldingCollection: v.GetString("librarian_holding_collection"),
		InboxName:         v.GetString("librarian_inbox_name"),
		VocabularyFile:    v.GetString("librarian_vocabulary"),
		OutputDir:         v.GetString("librarian_output_dir"),
		AuditDB:           v.GetString("librarian_audit_db"),
		Format:            v.GetString("librarian_format"),
		EnvLogLevel:       os.Getenv("LOG_LEVEL"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput:         getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
	return cfg, nil
}

// UpdateFromFlags applies parsed global flags over loaded values.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// Offline reports whether commands work on a snapshot file.
func (c *Config) Offline() bool {
	return c.SnapshotFile != ""
}

// Holding returns the holding area names.
func (c *Config) Holding() sweep.HoldingConfig {
	h := sweep.DefaultHoldingConfig()
	h.GroupingName = c.HoldingGrouping
	h.CollectionName = c.HoldingCollection
	return h
}

// Transport builds the remote client configuration. The base URL gets the
// /api suffix the service expects.
func (c *Config) Transport() (transport.Config, error) {
	if c.URL == "" {
		return transport.Config{}, errors.NewConfigError("remote", "BOOKSTACK_URL or BOOKSTACK_API_URL must be set", nil)
	}
	if c.TokenID == "" || c.TokenSecret == "" {
		return transport.Config{}, errors.NewConfigError("remote", "BOOKSTACK_TOKEN_ID and BOOKSTACK_TOKEN_SECRET must be set", nil)
	}
	base := c.URL
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return transport.Config{
		BaseURL:     base,
		TokenID:     c.TokenID,
		TokenSecret: c.TokenSecret,
		MinInterval: c.MinInterval,
		MaxAttempts: c.MaxAttempts,
		Timeout:     c.Timeout,
	}, nil
}

func loadEnvFiles() {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
