package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadConfig verifies defaults.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want %q", config.Store.Backend, BackendMemory)
	}
	if config.Store.AWSRegion != "eu-north-1" {
		t.Errorf("Store.AWSRegion = %q, want eu-north-1", config.Store.AWSRegion)
	}
	if config.Store.DynamoDBKeyAttribute != "registration_number" {
		t.Errorf("Store.DynamoDBKeyAttribute = %q", config.Store.DynamoDBKeyAttribute)
	}
	if config.Tables.Form != "mirror_form" || config.Tables.Sheet != "mirror_sheet" || config.Tables.Quarantine != "quarantine" {
		t.Errorf("Tables = %+v, want defaults", config.Tables)
	}
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.HTTPAddr != "localhost:8080" {
		t.Errorf("HTTPAddr = %q, want localhost:8080", config.HTTPAddr)
	}
}

// TestConfig_EnvironmentVariables verifies environment variable loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("TYPEFORM_ACCESS_TOKEN", "tf-token")
	t.Setenv("TYPEFORM_FORM_ID", "form-1")
	t.Setenv("AIRTABLE_API_KEY", "at-key")
	t.Setenv("AIRTABLE_BASE_ID", "app1")
	t.Setenv("AIRTABLE_TABLE_ID", "tbl1")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("TABLE_QUARANTINE", "dupes")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("SYNC_INTERVAL", "1h")
	t.Setenv("OUTPUT", "json")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.Typeform.AccessToken != "tf-token" || config.Typeform.FormID != "form-1" {
		t.Errorf("Typeform = %+v", config.Typeform)
	}
	if config.Airtable.APIKey != "at-key" || config.Airtable.BaseID != "app1" || config.Airtable.TableID != "tbl1" {
		t.Errorf("Airtable = %+v", config.Airtable)
	}
	if config.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want sqlite", config.Store.Backend)
	}
	if config.Tables.Quarantine != "dupes" || config.Tables.Form != "mirror_form" {
		t.Errorf("Tables = %+v", config.Tables)
	}
	if !config.Auth.Enabled() {
		t.Error("AUTH_JWT_SECRET not loaded")
	}
	if config.SyncInterval != time.Hour {
		t.Errorf("SyncInterval = %v, want 1h", config.SyncInterval)
	}
	if config.Output != "json" {
		t.Errorf("Output = %s, want json", config.Output)
	}
}

// TestConfig_File verifies an explicit config file is read and that the
// environment still wins over it.
func TestConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirrorsync.yaml")
	content := []byte("typeform_form_id: from-file\nredis_prefix: file-prefix\nstore_backend: redis\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDIS_PREFIX", "env-prefix")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
	if config.Typeform.FormID != "from-file" {
		t.Errorf("Typeform.FormID = %q, want from-file", config.Typeform.FormID)
	}
	if config.Store.Backend != BackendRedis {
		t.Errorf("Store.Backend = %q, want redis", config.Store.Backend)
	}
	if config.Store.RedisPrefix != "env-prefix" {
		t.Errorf("Store.RedisPrefix = %q, want env-prefix", config.Store.RedisPrefix)
	}
}

func TestConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() with a missing explicit file should fail")
	}
}

func TestConfig_UpdateFromFlags(t *testing.T) {
	c := &Config{Output: "yaml", LogLevel: "warn"}

	c.UpdateFromFlags(true, false, true, "", "")
	if !c.Verbose || !c.NoColor || c.Output != "yaml" || c.LogLevel != "warn" {
		t.Errorf("empty flags overrode config: %+v", c)
	}

	c.UpdateFromFlags(false, true, false, "json", "debug")
	if c.Verbose || !c.Quiet || c.Output != "json" || c.LogLevel != "debug" {
		t.Errorf("flags not applied: %+v", c)
	}
}
