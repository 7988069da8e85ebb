package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/threadbox/internal/store"
	pkgconfig "github.com/starford/threadbox/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
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

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
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
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Database.Persistent() {
		t.Error("default database should be in memory")
	}
	if cfg.Store.DeletePolicy() != store.PolicyInbox {
		t.Errorf("delete policy = %q, want inbox", cfg.Store.DeletePolicy())
	}
}

func TestStoreConfig_EmptyPolicyDefaultsInbox(t *testing.T) {
	cfg := StoreConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.OnThreadDelete != string(store.PolicyInbox) {
		t.Errorf("policy = %q", cfg.OnThreadDelete)
	}
	cfg.OnThreadDelete = "archive"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown policy should fail")
	}
}

func TestDatabaseConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DatabaseConfig
		wantErr bool
	}{
		{"memory without dsn", DatabaseConfig{Driver: DriverMemory}, false},
		{"sqlite with dsn", DatabaseConfig{Driver: DriverSQLite, DSN: "./threadbox.db"}, false},
		{"sqlite without dsn", DatabaseConfig{Driver: DriverSQLite}, true},
		{"postgres without dsn", DatabaseConfig{Driver: DriverPostgres}, true},
		{"unknown driver", DatabaseConfig{Driver: "mysql", DSN: "x"}, true},
		{"empty driver", DatabaseConfig{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClassifierConfig_Bounds(t *testing.T) {
	cfg := ClassifierConfig{Mode: ClassifierKeyword, MinConfidence: 1.2}
	if err := cfg.Validate(); err == nil {
		t.Error("min_confidence above 1 should fail")
	}
	cfg = ClassifierConfig{Mode: ClassifierKeyword, AutoApproveThreshold: -0.1}
	if err := cfg.Validate(); err == nil {
		t.Error("negative threshold should fail")
	}
	cfg = ClassifierConfig{Mode: "bayes"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestFullConfig_OpenAIRequiredOnlyWhenUsed(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("openai settings should be ignored when unused: %v", err)
	}

	cfg.Summary.Generator = GeneratorOpenAI
	err := cfg.Validate()
	if err == nil {
		t.Fatal("openai generator without api key should fail")
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.OpenAI.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("openai generator with api key should pass: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("THREADBOX_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  http:
    port: ${THREADBOX_PORT:-9090}
database:
  driver: sqlite
  dsn: ./data/threadbox.db
classifier:
  mode: keyword
  min_confidence: 0.4
  auto_approve_threshold: 0.9
auth:
  mode: token
  token: ${THREADBOX_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.App.HTTP.Port)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q", cfg.Auth.Token)
	}
	if cfg.Classifier.AutoApproveThreshold != 0.9 {
		t.Errorf("threshold = %v", cfg.Classifier.AutoApproveThreshold)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Summary.Generator != GeneratorTemplate || !cfg.Store.Seed {
		t.Errorf("defaults lost: %+v %+v", cfg.Summary, cfg.Store)
	}
}
