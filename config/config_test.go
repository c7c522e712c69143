package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/georgepadayatti/pdfltv/sign/cms"
	"github.com/georgepadayatti/pdfltv/sign/digest"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
)

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("field", "message")
	if err.Field != "field" {
		t.Errorf("Expected field 'field', got '%s'", err.Field)
	}

	expected := "config error in 'field': message"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
	if !errors.Is(err, ErrConfigurationError) {
		t.Error("Expected ConfigError to unwrap to ErrConfigurationError")
	}
}

func TestConfigErrorWithoutField(t *testing.T) {
	err := NewConfigError("", "general error")
	expected := "config error: general error"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

func TestOIDRegex(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1.2.3.4", true},
		{"2.16.840.1.101.3.4.2.1", true},
		{"1", false},
		{"sha256", false},
		{"1.2.abc", false},
		{"", false},
	}

	for _, tt := range tests {
		result := OIDRegex.MatchString(tt.input)
		if result != tt.expected {
			t.Errorf("OIDRegex.MatchString(%s) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}

	oid, err := cfg.Validation.DigestOID()
	if err != nil {
		t.Fatalf("DigestOID failed: %v", err)
	}
	if !oid.Equal(cms.OIDSHA256) {
		t.Errorf("Expected sha256, got %s", oid)
	}
	v, _ := cfg.Validation.Version()
	if v != hashindex.V3 {
		t.Errorf("Expected v3, got %s", v)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stderr" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *AppConfig
		field string
	}{
		{"no validation section", &AppConfig{Logging: &LoggingConfig{}}, "validation"},
		{"no logging section", &AppConfig{Validation: &ValidationConfig{}}, "logging"},
		{"empty digest algorithm", &AppConfig{
			Validation: &ValidationConfig{HashIndexVersion: "v3"},
			Logging:    &LoggingConfig{Level: "info", Format: "text"},
		}, "digest-algorithm"},
		{"empty hash index version", &AppConfig{
			Validation: &ValidationConfig{DigestAlgorithm: "sha256"},
			Logging:    &LoggingConfig{Level: "info", Format: "text"},
		}, "hash-index-version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, ErrMissingRequiredField) {
				t.Fatalf("Expected ErrMissingRequiredField, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("Expected error on field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestDigestOID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"sha256", "2.16.840.1.101.3.4.2.1", false},
		{"SHA-512", "2.16.840.1.101.3.4.2.3", false},
		{"sha3-256", "2.16.840.1.101.3.4.2.8", false},
		{"2.16.840.1.101.3.4.2.2", "2.16.840.1.101.3.4.2.2", false},
		{"1.2.3.4", "", true},
		{"md5", "", true},
		{"  ", "", true},
	}

	for _, tt := range tests {
		c := &ValidationConfig{DigestAlgorithm: tt.input}
		oid, err := c.DigestOID()
		if tt.wantErr {
			if err == nil {
				t.Errorf("DigestOID(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("DigestOID(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if oid.String() != tt.want {
			t.Errorf("DigestOID(%q) = %s, want %s", tt.input, oid, tt.want)
		}
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		data := []byte(`
validation:
  digest-algorithm: sha384
  hash-index-version: v2
  require-full-coverage: true
logging:
  level: debug
  format: json
`)
		cfg, err := ParseConfig(data)
		if err != nil {
			t.Fatalf("ParseConfig failed: %v", err)
		}
		if !cfg.Validation.RequireFullCoverage {
			t.Error("Expected require-full-coverage")
		}
		v, _ := cfg.Validation.Version()
		if v != hashindex.V2 {
			t.Errorf("Expected v2, got %s", v)
		}
		if cfg.Logging.Output != "stderr" {
			t.Errorf("Expected default output, got %s", cfg.Logging.Output)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		if err != nil {
			t.Fatalf("ParseConfig failed: %v", err)
		}
		if cfg.Validation.DigestAlgorithm != "sha256" {
			t.Errorf("Expected default digest, got %s", cfg.Validation.DigestAlgorithm)
		}
	})

	t.Run("UnknownSection", func(t *testing.T) {
		_, err := ParseConfig([]byte("signing:\n  key: x\n"))
		if !errors.Is(err, ErrUnexpectedField) {
			t.Errorf("Expected ErrUnexpectedField, got %v", err)
		}
	})

	t.Run("UnknownKey", func(t *testing.T) {
		_, err := ParseConfig([]byte("validation:\n  digest: sha1\n"))
		if !errors.Is(err, ErrUnexpectedField) {
			t.Errorf("Expected ErrUnexpectedField, got %v", err)
		}
	})

	t.Run("SectionNotMap", func(t *testing.T) {
		_, err := ParseConfig([]byte("logging: loud\n"))
		if err == nil {
			t.Error("Expected error for scalar section")
		}
	})

	t.Run("BadDigest", func(t *testing.T) {
		_, err := ParseConfig([]byte("validation:\n  digest-algorithm: md5\n"))
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Field != "digest-algorithm" {
			t.Fatalf("Expected ConfigError on digest-algorithm, got %v", err)
		}
		if !errors.Is(err, digest.ErrUnsupportedDigestAlgorithm) {
			t.Errorf("Expected unsupported digest in chain, got %v", err)
		}
	})

	t.Run("BadVersion", func(t *testing.T) {
		_, err := ParseConfig([]byte("validation:\n  hash-index-version: v9\n"))
		if !errors.Is(err, hashindex.ErrUnknownVersion) {
			t.Errorf("Expected ErrUnknownVersion, got %v", err)
		}
	})

	t.Run("BadLogLevel", func(t *testing.T) {
		_, err := ParseConfig([]byte("logging:\n  level: chatty\n"))
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Field != "level" {
			t.Errorf("Expected ConfigError on level, got %v", err)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected warn, got %s", cfg.Logging.Level)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadConfigFromMap(t *testing.T) {
	cfg, err := LoadConfigFromMap(map[string]any{
		"validation": map[string]any{"hash_index_version": "v1"},
	})
	if err != nil {
		t.Fatalf("LoadConfigFromMap failed: %v", err)
	}
	if cfg.Validation.HashIndexVersion != "v1" {
		t.Errorf("Expected v1, got %q", cfg.Validation.HashIndexVersion)
	}
}

func TestCheckConfigKeys(t *testing.T) {
	expected := []string{"digest-algorithm", "require-full-coverage"}

	if err := CheckConfigKeys("validation", expected, []string{"Digest_Algorithm"}); err != nil {
		t.Errorf("Expected normalised key to match: %v", err)
	}
	// Fullwidth underscore folds to "_" under NFKC.
	if err := CheckConfigKeys("validation", expected, []string{"require＿full＿coverage"}); err != nil {
		t.Errorf("Expected NFKC-folded key to match: %v", err)
	}

	err := CheckConfigKeys("validation", expected, []string{"foo", "bar"})
	if !errors.Is(err, ErrUnexpectedField) {
		t.Fatalf("Expected ErrUnexpectedField, got %v", err)
	}
	if got := err.Error(); got != "unexpected field in configuration: unexpected keys in configuration for validation: foo, bar" {
		t.Errorf("Unexpected message: %s", got)
	}
}
