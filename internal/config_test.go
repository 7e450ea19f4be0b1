package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/wssync/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Sync.Source = "/srv/workspaces"
	cfg.Sync.Target = "/var/www/html/data"
	return cfg
}

func TestConfig_DefaultsNeedRoots(t *testing.T) {
	err := NewDefaultConfig().Validate()
	if err == nil {
		t.Fatal("default config without roots should fail")
	}
	if !strings.Contains(err.Error(), "source root is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config failed: %v", err)
	}
}

func TestConfig_MissingTarget(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.Target = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "target root is required") {
		t.Errorf("err = %v", err)
	}
}

func TestCatalogueConfig_FileMustBePlainName(t *testing.T) {
	for _, name := range []string{"", "sub/items.json", `..\items.json`} {
		cfg := validConfig()
		cfg.Catalogue.File = name
		if err := cfg.Validate(); err == nil {
			t.Errorf("file %q should be rejected", name)
		}
	}
}

func TestWatchConfig_Debounce(t *testing.T) {
	cfg := validConfig()
	cfg.Watch.Debounce = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("1ms debounce should fail")
	}
}

func TestHistoryConfig_Enabled(t *testing.T) {
	cfg := validConfig()
	if cfg.History.Enabled() {
		t.Error("history should be disabled by default")
	}
	cfg.History.Path = "wssync.db"
	if !cfg.History.Enabled() {
		t.Error("history should be enabled with a path")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestCatalogueConfig_LinkPrefixFromYAML(t *testing.T) {
	cases := map[string]string{
		"catalogue:\n  file: items.json\n": "",
		"catalogue:\n  prefix: \"\"\n":     "/",
		"catalogue:\n  prefix: /files//\n": "/files/",
	}
	for doc, want := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := NewDefaultConfig()
		if err := pkgconfig.Load(path, cfg); err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got := cfg.Catalogue.LinkPrefix(); got != want {
			t.Errorf("%q: LinkPrefix() = %q, want %q", doc, got, want)
		}
	}
}
