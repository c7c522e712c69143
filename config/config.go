// Package config loads the YAML configuration of the layer validation
// tools.
package config

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/georgepadayatti/pdfltv/sign/digest"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnexpectedField      = errors.New("unexpected field in configuration")
	ErrInvalidOID           = errors.New("invalid OID")
	ErrInvalidConfigType    = errors.New("configuration must be a dictionary")
)

// OIDRegex matches OID strings like "1.2.3.4"
var OIDRegex = regexp.MustCompile(`^\d+(\.\d+)+$`)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfigurationError
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// ValidationConfig controls hash-index checks and coverage policy.
type ValidationConfig struct {
	// DigestAlgorithm is used when building new hash indexes. A name such
	// as "sha256" or a dotted OID.
	DigestAlgorithm string `yaml:"digest-algorithm" json:"digest_algorithm,omitempty"`

	// HashIndexVersion is the version of new hash indexes (v1, v2, v3).
	HashIndexVersion string `yaml:"hash-index-version" json:"hash_index_version,omitempty"`

	// RequireFullCoverage turns incomplete coverage into a failure.
	RequireFullCoverage bool `yaml:"require-full-coverage" json:"require_full_coverage"`
}

// SetDefaults sets default values for validation configuration.
func (c *ValidationConfig) SetDefaults() {
	if c.DigestAlgorithm == "" {
		c.DigestAlgorithm = "sha256"
	}
	if c.HashIndexVersion == "" {
		c.HashIndexVersion = hashindex.V3.String()
	}
}

// Validate validates the validation configuration. SetDefaults fills the
// required fields; a caller building the section by hand must set them.
func (c *ValidationConfig) Validate() error {
	required := []struct{ field, value string }{
		{"digest-algorithm", c.DigestAlgorithm},
		{"hash-index-version", c.HashIndexVersion},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigError{Field: r.field, Message: "value is required", Err: ErrMissingRequiredField}
		}
	}
	if _, err := c.DigestOID(); err != nil {
		return &ConfigError{Field: "digest-algorithm", Message: err.Error(), Err: err}
	}
	if _, err := c.Version(); err != nil {
		return &ConfigError{Field: "hash-index-version", Message: err.Error(), Err: err}
	}
	return nil
}

// DigestOID resolves the configured digest algorithm.
func (c *ValidationConfig) DigestOID() (asn1.ObjectIdentifier, error) {
	name, err := ProcessOID(c.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	if !OIDRegex.MatchString(name) {
		return digest.ParseName(name)
	}
	oid, err := parseDottedOID(name)
	if err != nil {
		return nil, err
	}
	if _, err := digest.Size(oid); err != nil {
		return nil, err
	}
	return oid, nil
}

// Version resolves the configured hash-index version.
func (c *ValidationConfig) Version() (hashindex.Version, error) {
	return hashindex.ParseVersion(c.HashIndexVersion)
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level,omitempty"`

	// Format is the log format (text, json).
	Format string `yaml:"format" json:"format,omitempty"`

	// Output is the log output (stdout, stderr, or file path).
	Output string `yaml:"output" json:"output,omitempty"`
}

// SetDefaults sets default values for logging configuration.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		return NewConfigError("level", fmt.Sprintf("unknown log level %q", c.Level))
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		return NewConfigError("format", fmt.Sprintf("unknown log format %q", c.Format))
	}
	return nil
}

// AppConfig contains the complete application configuration.
type AppConfig struct {
	// Validation contains hash-index and coverage settings.
	Validation *ValidationConfig `yaml:"validation" json:"validation,omitempty"`

	// Logging contains logging configuration.
	Logging *LoggingConfig `yaml:"logging" json:"logging,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.setDefaults()
	return cfg
}

func (c *AppConfig) setDefaults() {
	if c.Validation == nil {
		c.Validation = &ValidationConfig{}
	}
	c.Validation.SetDefaults()
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.SetDefaults()
}

// Validate validates every section.
func (c *AppConfig) Validate() error {
	if c.Validation == nil {
		return &ConfigError{Field: "validation", Message: "section is required", Err: ErrMissingRequiredField}
	}
	if c.Logging == nil {
		return &ConfigError{Field: "logging", Message: "section is required", Err: ErrMissingRequiredField}
	}
	if err := c.Validation.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

var sectionKeys = map[string][]string{
	"validation": {"digest-algorithm", "hash-index-version", "require-full-coverage"},
	"logging":    {"level", "format", "output"},
}

// LoadConfig loads the application configuration from a file.
func LoadConfig(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data. Unknown keys are
// rejected, defaults are applied and the result is validated.
func ParseConfig(data []byte) (*AppConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := checkKeys(raw); err != nil {
		return nil, err
	}

	normalized, err := yaml.Marshal(normalizeKeys(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to normalise config: %w", err)
	}
	var config AppConfig
	if err := yaml.Unmarshal(normalized, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfigFromMap loads configuration from a map.
func LoadConfigFromMap(data map[string]any) (*AppConfig, error) {
	// Marshal to YAML then unmarshal to struct
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config map: %w", err)
	}
	return ParseConfig(yamlData)
}

func checkKeys(raw map[string]any) error {
	sections := make([]string, 0, len(sectionKeys))
	for name := range sectionKeys {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	if err := CheckConfigKeys("configuration", sections, keysOf(raw)); err != nil {
		return err
	}
	for key, value := range raw {
		if value == nil {
			continue
		}
		section, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: section %s", ErrInvalidConfigType, key)
		}
		if err := CheckConfigKeys(key, sectionKeys[normalizeKey(key)], keysOf(section)); err != nil {
			return err
		}
	}
	return nil
}

// normalizeKeys rewrites every section and key to its canonical form.
func normalizeKeys(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		section, ok := value.(map[string]any)
		if !ok {
			out[normalizeKey(key)] = value
			continue
		}
		fields := make(map[string]any, len(section))
		for k, v := range section {
			fields[normalizeKey(k)] = v
		}
		out[normalizeKey(key)] = fields
	}
	return out
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckConfigKeys checks if all provided keys are valid for a given configuration type.
func CheckConfigKeys(configName string, expectedKeys, suppliedKeys []string) error {
	expectedSet := make(map[string]bool)
	for _, k := range expectedKeys {
		expectedSet[normalizeKey(k)] = true
	}

	var unexpected []string
	for _, k := range suppliedKeys {
		normalized := normalizeKey(k)
		if !expectedSet[normalized] {
			unexpected = append(unexpected, k)
		}
	}

	if len(unexpected) > 0 {
		keyWord := "key"
		if len(unexpected) > 1 {
			keyWord = "keys"
		}
		return fmt.Errorf("%w: unexpected %s in configuration for %s: %s",
			ErrUnexpectedField, keyWord, configName, strings.Join(unexpected, ", "))
	}

	return nil
}

// normalizeKey folds compatibility characters, case and underscores so
// that "Digest_Algorithm" matches "digest-algorithm".
func normalizeKey(key string) string {
	key = norm.NFKC.String(key)
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

// ProcessOID validates and normalizes an OID string.
func ProcessOID(oidString string) (string, error) {
	oidString = strings.TrimSpace(oidString)
	if oidString == "" {
		return "", &ConfigError{Field: "oid", Message: "OID string is empty", Err: ErrInvalidOID}
	}
	return oidString, nil
}

func parseDottedOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidOID, s)
		}
		oid[i] = n
	}
	return oid, nil
}
