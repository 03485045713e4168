package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Backend != BackendMemory {
		t.Errorf("expected default backend memory, got %s", cfg.Store.Backend)
	}
	if cfg.Store.Bucket != "SEMCNL_REGISTRY" {
		t.Errorf("expected default bucket SEMCNL_REGISTRY, got %s", cfg.Store.Bucket)
	}
	if cfg.Publish.Subject != "graph.ingest.entity" {
		t.Errorf("expected default subject graph.ingest.entity, got %s", cfg.Publish.Subject)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if cfg.NeedsNATS() {
		t.Error("default config should not need NATS")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing user",
			modify:  func(c *Config) { c.User = "" },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: true,
		},
		{
			name: "sqlite without path",
			modify: func(c *Config) {
				c.Store.Backend = BackendSQLite
				c.Store.Path = ""
			},
			wantErr: true,
		},
		{
			name: "nats with embedded server",
			modify: func(c *Config) {
				c.Store.Backend = BackendNATS
			},
			wantErr: false,
		},
		{
			name: "nats without server",
			modify: func(c *Config) {
				c.Store.Backend = BackendNATS
				c.NATS.Embedded = false
			},
			wantErr: true,
		},
		{
			name: "publish without subject",
			modify: func(c *Config) {
				c.Publish.Enabled = true
				c.Publish.Subject = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
user: ada
store:
  backend: sqlite
  path: /tmp/registry.db
nats:
  url: "nats://test:4222"
parser:
  strict: true
  schema: geo.yaml
publish:
  enabled: true
export:
  format: jsonld
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.User != "ada" {
		t.Errorf("expected user ada, got %s", cfg.User)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.Path != "/tmp/registry.db" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if !cfg.Parser.Strict || cfg.Parser.SchemaPath != "geo.yaml" {
		t.Errorf("unexpected parser config %+v", cfg.Parser)
	}
	// Unset fields keep their defaults.
	if cfg.Publish.Subject != "graph.ingest.entity" {
		t.Errorf("expected default subject, got %s", cfg.Publish.Subject)
	}
	if cfg.Export.Format != "jsonld" || cfg.Export.Profile != "minimal" {
		t.Errorf("unexpected export config %+v", cfg.Export)
	}
	if !cfg.NeedsNATS() {
		t.Error("publishing should need NATS")
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("store: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadFromFile(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Store: StoreConfig{
			Backend: BackendNATS,
		},
		NATS: NATSConfig{
			URL: "nats://remote:4222",
		},
		Parser: ParserConfig{
			Strict: true,
		},
	}

	base.Merge(override)

	if base.Store.Backend != BackendNATS {
		t.Errorf("expected backend nats, got %s", base.Store.Backend)
	}
	// Bucket should remain from base since override didn't set it
	if base.Store.Bucket != "SEMCNL_REGISTRY" {
		t.Errorf("expected bucket to remain default, got %s", base.Store.Bucket)
	}
	if base.NATS.Embedded {
		t.Error("an explicit NATS URL should turn off the embedded server")
	}
	if !base.Parser.Strict {
		t.Error("expected strict mode")
	}
	if base.User != "local" {
		t.Errorf("expected user to remain local, got %s", base.User)
	}

	base.Merge(nil)
	if base.Store.Backend != BackendNATS {
		t.Error("merging nil should change nothing")
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.User = "grace"
	cfg.Export.Format = "ntriples"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.User != "grace" {
		t.Errorf("expected user grace, got %s", loaded.User)
	}
	if loaded.Export.Format != "ntriples" {
		t.Errorf("expected format ntriples, got %s", loaded.Export.Format)
	}
}

func TestLoader_Layers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	userCfg := DefaultConfig()
	userCfg.User = "ada"
	userCfg.Export.Format = "jsonld"
	if err := userCfg.SaveToFile(filepath.Join(home, UserConfigDir, UserConfigFile)); err != nil {
		t.Fatalf("failed to write user config: %v", err)
	}

	project := t.TempDir()
	nested := filepath.Join(project, "notes", "geo")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	projectContent := "store:\n  backend: sqlite\n  path: project.db\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte(projectContent), 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(nil).WithDir(nested)
	loader.getenv = func(string) string { return "" }

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.User != "ada" {
		t.Errorf("expected user from user config, got %s", cfg.User)
	}
	if cfg.Export.Format != "jsonld" {
		t.Errorf("expected format from user config, got %s", cfg.Export.Format)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.Path != "project.db" {
		t.Errorf("expected store from project config, got %+v", cfg.Store)
	}
}

func TestLoader_Env(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	env := map[string]string{
		EnvStore:   BackendNATS,
		EnvNATSURL: "nats://env:4222",
	}
	loader := NewLoader(nil).WithDir(t.TempDir())
	loader.getenv = func(k string) string { return env[k] }

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != BackendNATS {
		t.Errorf("expected backend from env, got %s", cfg.Store.Backend)
	}
	if cfg.NATS.URL != "nats://env:4222" || cfg.NATS.Embedded {
		t.Errorf("unexpected NATS config %+v", cfg.NATS)
	}
}

func TestLoader_InvalidEnvBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	loader := NewLoader(nil).WithDir(t.TempDir())
	loader.getenv = func(k string) string {
		if k == EnvStore {
			return "postgres"
		}
		return ""
	}

	if _, err := loader.Load(); err == nil {
		t.Error("expected validation error for unknown backend")
	}
}

func TestLoader_EnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	loader := NewLoader(nil)
	if err := loader.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("user config not created: %v", err)
	}
	// Second call leaves the file alone.
	if err := loader.EnsureUserConfig(); err != nil {
		t.Errorf("second EnsureUserConfig() error = %v", err)
	}
}
