package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/threadbox/internal/persist"
	"github.com/starford/threadbox/internal/store"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Database drivers. DriverMemory keeps state in process only.
const (
	DriverMemory   = "memory"
	DriverSQLite   = persist.DriverSQLite
	DriverPostgres = persist.DriverPostgres
)

// Classifier modes.
const (
	ClassifierNone    = "none"
	ClassifierKeyword = "keyword"
	ClassifierOpenAI  = "openai"
)

// Summary generators.
const (
	GeneratorTemplate = "template"
	GeneratorOpenAI   = "openai"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Store      StoreConfig       `yaml:"store"`
	Database   DatabaseConfig    `yaml:"database"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Summary    SummaryConfig     `yaml:"summary"`
	OpenAI     OpenAIConfig      `yaml:"openai"`
	Ingest     IngestConfig      `yaml:"ingest"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Store, &c.Database, &c.Classifier, &c.Summary, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.Classifier.Mode == ClassifierOpenAI || c.Summary.Generator == GeneratorOpenAI {
		if err := c.OpenAI.Validate(); err != nil {
			return fmt.Errorf("openai: %w", err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig controls the initial dataset and the thread delete policy.
type StoreConfig struct {
	Seed           bool   `yaml:"seed"`
	OnThreadDelete string `yaml:"on_thread_delete"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.OnThreadDelete == "" {
		c.OnThreadDelete = string(store.PolicyInbox)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.OnThreadDelete,
			validation.In(string(store.PolicyInbox), string(store.PolicyRemove))),
	)
}

// DeletePolicy returns the configured policy.
func (c *StoreConfig) DeletePolicy() store.DeletePolicy {
	return store.DeletePolicy(c.OnThreadDelete)
}

// DatabaseConfig selects where state is persisted.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(DriverMemory, DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.When(c.Driver != DriverMemory, validation.Required)),
	)
}

// Persistent reports whether a database backs the store.
func (c *DatabaseConfig) Persistent() bool {
	return c.Driver != DriverMemory
}

// ClassifierConfig selects the suggestion supplier for new notes.
//
// AutoApproveThreshold of 0 disables automatic approval; otherwise a
// suggestion with at least that confidence is moved into its thread on ingest.
type ClassifierConfig struct {
	Mode                 string  `yaml:"mode"`
	MinConfidence        float64 `yaml:"min_confidence"`
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`
}

// Validate validates the classifier configuration.
func (c *ClassifierConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required,
			validation.In(ClassifierNone, ClassifierKeyword, ClassifierOpenAI)),
		validation.Field(&c.MinConfidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.AutoApproveThreshold, validation.Min(0.0), validation.Max(1.0)),
	)
}

// SummaryConfig selects the summary generator and the export directory.
// An empty ExportDir disables exports.
type SummaryConfig struct {
	Generator string `yaml:"generator"`
	ExportDir string `yaml:"export_dir"`
}

// Validate validates the summary configuration.
func (c *SummaryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Generator, validation.Required,
			validation.In(GeneratorTemplate, GeneratorOpenAI)),
	)
}

// OpenAIConfig holds chat-completion settings shared by the classifier and
// the summary generator. It is only validated when one of them uses it.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Validate validates the OpenAI configuration.
func (c *OpenAIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// IngestConfig holds the drop folder watched for new messages.
// An empty DropDir disables the watcher.
type IngestConfig struct {
	DropDir string `yaml:"drop_dir"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Seed:           true,
			OnThreadDelete: string(store.PolicyInbox),
		},
		Database: DatabaseConfig{
			Driver: DriverMemory,
		},
		Classifier: ClassifierConfig{
			Mode:          ClassifierKeyword,
			MinConfidence: 0.3,
		},
		Summary: SummaryConfig{
			Generator: GeneratorTemplate,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   500,
			Temperature: 0.2,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
