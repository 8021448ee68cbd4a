package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/platinummonkey/hatch/pkg/observability"
	"github.com/platinummonkey/hatch/pkg/plugins"
	"github.com/platinummonkey/hatch/pkg/runner"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no file is named
const DefaultFile = "hatch.yaml"

// Config holds all application configuration
type Config struct {
	ProjectRoot    string `yaml:"project_root" validate:"required"`
	PluginRoot     string `yaml:"plugin_root" validate:"required"`
	ReportDir      string `yaml:"report_dir" validate:"required"`
	ManifestFile   string `yaml:"manifest_file" validate:"required"`
	EntrypointFile string `yaml:"entrypoint_file" validate:"required"`
	AuditLog       string `yaml:"audit_log"` // Empty disables the audit log

	Backend       BackendConfig       `yaml:"backend"`
	Direct        DirectConfig        `yaml:"direct"`
	Container     ContainerConfig     `yaml:"container"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BackendConfig selects how plugins are executed
type BackendConfig struct {
	Kind    string        `yaml:"kind" validate:"oneof=direct container"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// DirectConfig configures the direct backend
type DirectConfig struct {
	// Empty executes the entrypoint itself
	Interpreter string `yaml:"interpreter"`
}

// ContainerConfig configures the container backend
type ContainerConfig struct {
	Engine      string `yaml:"engine" validate:"oneof=cli api"`
	Runtime     string `yaml:"runtime" validate:"required"`
	Image       string `yaml:"image" validate:"required"`
	Interpreter string `yaml:"interpreter" validate:"required"`
	Workdir     string `yaml:"workdir" validate:"required,startswith=/"`
	TmpfsSize   string `yaml:"tmpfs_size" validate:"required"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
	LogFormat   string `yaml:"log_format" validate:"oneof=text json"`
	MetricsFile string `yaml:"metrics_file"`

	// OpenTelemetry
	OTelEnabled  bool   `yaml:"otel_enabled"`
	OTelEndpoint string `yaml:"otel_endpoint" validate:"required_if=OTelEnabled true"`
	OTelInsecure bool   `yaml:"otel_insecure"`
	ServiceName  string `yaml:"service_name" validate:"required_if=OTelEnabled true"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ProjectRoot:    ".",
		PluginRoot:     "plugins",
		ReportDir:      "reports",
		ManifestFile:   plugins.DefaultManifestFile,
		EntrypointFile: plugins.DefaultEntrypointFile,
		Backend: BackendConfig{
			Kind:    string(runner.KindDirect),
			Timeout: runner.DefaultTimeout,
		},
		Direct: DirectConfig{
			Interpreter: runner.DefaultInterpreter,
		},
		Container: ContainerConfig{
			Engine:      runner.EngineCLI,
			Runtime:     runner.DefaultContainerRuntime,
			Image:       runner.DefaultContainerImage,
			Interpreter: runner.DefaultContainerInterpreter,
			Workdir:     runner.DefaultContainerWorkdir,
			TmpfsSize:   runner.DefaultTmpfsSize,
		},
		Observability: ObservabilityConfig{
			LogLevel:     "info",
			LogFormat:    observability.FormatText,
			OTelEndpoint: "localhost:4317",
			OTelInsecure: true,
			ServiceName:  "hatch",
		},
	}
}

// Load layers defaults, the YAML file at path and HATCH_* environment
// variables. An empty path reads DefaultFile if it exists. The result is
// neither resolved nor validated so callers can apply flag overrides first.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.loadEnv()
	return cfg, nil
}

// LoadConfig loads, resolves and validates configuration
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.ProjectRoot = getEnv("HATCH_PROJECT_ROOT", c.ProjectRoot)
	c.PluginRoot = getEnv("HATCH_PLUGIN_ROOT", c.PluginRoot)
	c.ReportDir = getEnv("HATCH_REPORT_DIR", c.ReportDir)
	c.ManifestFile = getEnv("HATCH_MANIFEST_FILE", c.ManifestFile)
	c.EntrypointFile = getEnv("HATCH_ENTRYPOINT_FILE", c.EntrypointFile)
	c.AuditLog = getEnv("HATCH_AUDIT_LOG", c.AuditLog)

	c.Backend.Kind = getEnv("HATCH_BACKEND", c.Backend.Kind)
	c.Backend.Timeout = getEnvDuration("HATCH_TIMEOUT", c.Backend.Timeout)

	c.Direct.Interpreter = getEnv("HATCH_INTERPRETER", c.Direct.Interpreter)

	c.Container.Engine = getEnv("HATCH_CONTAINER_ENGINE", c.Container.Engine)
	c.Container.Runtime = getEnv("HATCH_CONTAINER_RUNTIME", c.Container.Runtime)
	c.Container.Image = getEnv("HATCH_CONTAINER_IMAGE", c.Container.Image)
	c.Container.Interpreter = getEnv("HATCH_CONTAINER_INTERPRETER", c.Container.Interpreter)
	c.Container.TmpfsSize = getEnv("HATCH_CONTAINER_TMPFS_SIZE", c.Container.TmpfsSize)

	c.Observability.LogLevel = getEnv("HATCH_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("HATCH_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsFile = getEnv("HATCH_METRICS_FILE", c.Observability.MetricsFile)
	c.Observability.OTelEnabled = getEnvBool("HATCH_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("HATCH_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelInsecure = getEnvBool("HATCH_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.ServiceName = getEnv("HATCH_OTEL_SERVICE_NAME", c.Observability.ServiceName)
}

// Resolve makes the project root absolute and anchors relative plugin,
// report and audit paths at it
func (c *Config) Resolve() error {
	root, err := filepath.Abs(c.ProjectRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	c.ProjectRoot = root

	if c.PluginRoot != "" && !filepath.IsAbs(c.PluginRoot) {
		c.PluginRoot = filepath.Join(root, c.PluginRoot)
	}
	if c.ReportDir != "" && !filepath.IsAbs(c.ReportDir) {
		c.ReportDir = filepath.Join(root, c.ReportDir)
	}
	if c.AuditLog != "" && !filepath.IsAbs(c.AuditLog) {
		c.AuditLog = filepath.Join(root, c.AuditLog)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	validationErrs := &ValidationErrors{}
	for _, e := range fieldErrs {
		validationErrs.Errors = append(validationErrs.Errors, ValidationError{
			Field:   fieldPath(e),
			Message: formatValidationMessage(e),
		})
	}
	return validationErrs
}

// RunnerConfig returns the settings shared by the execution backends
func (c *Config) RunnerConfig() runner.Config {
	return runner.Config{
		ProjectRoot: c.ProjectRoot,
		Direct: runner.DirectConfig{
			Interpreter: c.Direct.Interpreter,
		},
		Container: runner.ContainerConfig{
			Runtime:     c.Container.Runtime,
			Image:       c.Container.Image,
			Interpreter: c.Container.Interpreter,
			Workdir:     c.Container.Workdir,
			TmpfsSize:   c.Container.TmpfsSize,
		},
	}
}

// CatalogConfig returns where plugins are discovered
func (c *Config) CatalogConfig() plugins.CatalogConfig {
	return plugins.CatalogConfig{
		Root:           c.PluginRoot,
		ManifestFile:   c.ManifestFile,
		EntrypointFile: c.EntrypointFile,
	}
}

// OTelConfig returns the tracing settings
func (c *Config) OTelConfig(version string) observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.ServiceName,
		ServiceVersion: version,
		Insecure:       c.Observability.OTelInsecure,
	}
}

// BackendKind returns the configured backend kind
func (c *Config) BackendKind() runner.Kind {
	return runner.Kind(c.Backend.Kind)
}

// validate reports field names by their YAML keys
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError represents a field-level validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors holds multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface for ValidationErrors
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}

// fieldPath renders the dotted YAML path of a field, e.g. backend.kind
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatValidationMessage(e validator.FieldError) string {
	field := fieldPath(e)
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, e.Param(), fmt.Sprint(e.Value()))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
// Bare integers are read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds := getEnvInt(key, -1); seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
