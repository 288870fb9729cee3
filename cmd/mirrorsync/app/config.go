package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/mirrorsync/internal/server/middleware"
	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Config holds the application configuration loaded from flags, the
// environment, .env files and an optional config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Output  string

	// Config file
	ConfigFile string

	// Registries
	Typeform TypeformConfig
	Airtable AirtableConfig

	// Mirror store
	Store      StoreConfig
	Tables     store.Tables
	SchemaFile string

	// HTTP API
	HTTPAddr     string
	Auth         middleware.JWTConfig
	SyncInterval time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// TypeformConfig holds the form registry credentials.
type TypeformConfig struct {
	AccessToken string
	FormID      string
	BaseURL     string
}

// AirtableConfig holds the sheet registry credentials.
type AirtableConfig struct {
	APIKey  string
	BaseID  string
	TableID string
	BaseURL string
}

// StoreConfig selects and configures the mirror store backend.
type StoreConfig struct {
	Backend string

	SQLitePath string

	RedisURL    string
	RedisPrefix string

	AWSRegion            string
	DynamoDBEndpoint     string
	DynamoDBKeyAttribute string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later by UpdateFromFlags)
// 2. Environment variables
// 3. .env files
// 4. Config file (configFile, or ~/.mirrorsync.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".mirrorsync")
		// A missing default config file is fine.
		_ = v.ReadInConfig()
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Output:  v.GetString("output"),

		ConfigFile: v.ConfigFileUsed(),

		Typeform: TypeformConfig{
			AccessToken: v.GetString("typeform_access_token"),
			FormID:      v.GetString("typeform_form_id"),
			BaseURL:     v.GetString("typeform_base_url"),
		},
		Airtable: AirtableConfig{
			APIKey:  v.GetString("airtable_api_key"),
			BaseID:  v.GetString("airtable_base_id"),
			TableID: v.GetString("airtable_table_id"),
			BaseURL: v.GetString("airtable_base_url"),
		},

		Store: StoreConfig{
			Backend:              strings.ToLower(v.GetString("store_backend")),
			SQLitePath:           v.GetString("sqlite_path"),
			RedisURL:             v.GetString("redis_url"),
			RedisPrefix:          v.GetString("redis_prefix"),
			AWSRegion:            v.GetString("aws_region"),
			DynamoDBEndpoint:     v.GetString("dynamodb_endpoint"),
			DynamoDBKeyAttribute: v.GetString("dynamodb_key_attribute"),
		},
		Tables: store.Tables{
			Form:       v.GetString("table_form"),
			Sheet:      v.GetString("table_sheet"),
			Quarantine: v.GetString("table_quarantine"),
		}.WithDefaults(),
		SchemaFile: v.GetString("schema_file"),

		HTTPAddr: v.GetString("http_addr"),
		Auth: middleware.JWTConfig{
			Secret:   v.GetString("auth_jwt_secret"),
			Issuer:   v.GetString("auth_jwt_issuer"),
			Audience: v.GetString("auth_jwt_audience"),
		},
		SyncInterval: v.GetDuration("sync_interval"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_backend", BackendMemory)
	v.SetDefault("sqlite_path", "mirrorsync.db")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("redis_prefix", "mirrorsync")
	v.SetDefault("aws_region", "eu-north-1")
	v.SetDefault("dynamodb_key_attribute", "registration_number")
	v.SetDefault("table_form", constants.FormTable)
	v.SetDefault("table_sheet", constants.SheetTable)
	v.SetDefault("table_quarantine", constants.QuarantineTable)
	v.SetDefault("http_addr", "localhost:8080")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// UpdateFromFlags updates config values from parsed command flags so that
// flags take precedence over the config file and environment.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, output, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if output != "" {
		c.Output = output
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env; neither overrides the real environment.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
