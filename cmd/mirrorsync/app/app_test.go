package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/agentstation/mirrorsync"
	"github.com/agentstation/mirrorsync/internal/sources"
	"github.com/agentstation/mirrorsync/pkg/normalize"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store/memory"
)

func testConfig() *Config {
	return &Config{
		Store:     StoreConfig{Backend: BackendMemory},
		LogFormat: "json",
		LogOutput: "discard",
	}
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, err := New("1.0.0", "abc123", "2024-01-01", "test", WithConfig(testConfig()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
	if app.Gatherer() == nil {
		t.Error("Gatherer() returned nil")
	}
}

// TestApp_Client_ThreadSafe verifies concurrent Client() calls share one instance.
func TestApp_Client_ThreadSafe(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test", WithConfig(testConfig()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	const goroutines = 50
	var wg sync.WaitGroup
	results := make([]mirrorsync.Client, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = app.Client()
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("Client() goroutine %d failed: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a different client", i)
		}
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func TestApp_Client_BadBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "cassandra"
	app, err := New("dev", "", "", "", WithConfig(cfg))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := app.Client(); err == nil {
		t.Error("Client() with an unknown backend should fail")
	}
}

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name       string
		cfg        StoreConfig
		wantCloser bool
		wantErr    bool
	}{
		{name: "default", cfg: StoreConfig{}},
		{name: "memory", cfg: StoreConfig{Backend: BackendMemory}},
		{name: "sqlite", cfg: StoreConfig{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "m.db")}, wantCloser: true},
		{name: "redis", cfg: StoreConfig{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr(), RedisPrefix: "t"}, wantCloser: true},
		{name: "redis bad url", cfg: StoreConfig{Backend: BackendRedis, RedisURL: "://nope"}, wantErr: true},
		{name: "unknown", cfg: StoreConfig{Backend: "cassandra"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gw, closer, err := OpenStore(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("OpenStore() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStore() failed: %v", err)
			}
			if (closer != nil) != tt.wantCloser {
				t.Errorf("closer = %v, want closer: %v", closer, tt.wantCloser)
			}
			if closer != nil {
				defer closer.Close()
			}

			if err := gw.Put(ctx, "mirror_sheet", "A", records.Fields{"morphology": 1.0}); err != nil {
				t.Fatalf("Put() failed: %v", err)
			}
			items, err := gw.ScanAll(ctx, "mirror_sheet")
			if err != nil {
				t.Fatalf("ScanAll() failed: %v", err)
			}
			if len(items) != 1 {
				t.Errorf("ScanAll() returned %d items, want 1", len(items))
			}
		})
	}
}

func TestBuildSources(t *testing.T) {
	n := normalize.Default()

	set, err := BuildSources(&Config{}, n)
	if err != nil {
		t.Fatalf("BuildSources() failed: %v", err)
	}
	if len(set.Origins()) != 0 {
		t.Errorf("Origins() = %v, want none", set.Origins())
	}

	cfg := &Config{
		Typeform: TypeformConfig{AccessToken: "tok", FormID: "f1"},
		Airtable: AirtableConfig{APIKey: "key", BaseID: "app1", TableID: "tbl1"},
	}
	set, err = BuildSources(cfg, n)
	if err != nil {
		t.Fatalf("BuildSources() failed: %v", err)
	}
	if got := set.Origins(); len(got) != 2 {
		t.Errorf("Origins() = %v, want form and sheet", got)
	}

	if _, err := BuildSources(&Config{Typeform: TypeformConfig{AccessToken: "tok"}}, n); err == nil {
		t.Error("BuildSources() without a form id should fail")
	}
}

func TestLoadNormalizer(t *testing.T) {
	if n, err := LoadNormalizer(""); err != nil || n == nil {
		t.Fatalf("LoadNormalizer(\"\") = %v, %v", n, err)
	}
	if _, err := LoadNormalizer(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadNormalizer() with a missing file should fail")
	}
}

func runCLI(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := app.createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExecute_Version(t *testing.T) {
	app, err := New("1.2.3", "abc", "today", "ci", WithConfig(testConfig()))
	if err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, app, "version", "-v", "--log-level", "error")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "mirrorsync 1.2.3") || !strings.Contains(out, "commit:   abc") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestExecute_SyncThenMerged(t *testing.T) {
	sheet := &sources.Static{From: records.OriginSheet}
	sheet.Set([]records.SourceRecord{
		{Key: "A", Origin: records.OriginSheet, Fields: records.Fields{"morphology": 4.0}},
	}, nil)
	client, err := mirrorsync.New(memory.New(), sources.NewSet(sheet))
	if err != nil {
		t.Fatal(err)
	}

	app, err := New("dev", "", "", "", WithConfig(testConfig()), WithClient(client))
	if err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, app, "sync", "sheet", "-o", "json")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(out, `"added": 1`) {
		t.Errorf("sync output missing added count: %s", out)
	}
	if app.OutputFormat() != "json" {
		t.Errorf("OutputFormat() = %q, want json", app.OutputFormat())
	}

	out, err = runCLI(t, app, "merged", "-o", "json")
	if err != nil {
		t.Fatalf("merged failed: %v", err)
	}
	if !strings.Contains(out, `"registration_number": "A"`) {
		t.Errorf("merged output missing key: %s", out)
	}
}

func TestExecute_InvalidFormat(t *testing.T) {
	app, err := New("dev", "", "", "", WithConfig(testConfig()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, app, "merged", "-o", "wide"); err == nil {
		t.Error("merged -o wide should fail")
	}
}
