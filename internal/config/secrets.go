// Package config provides environment-driven configuration and vendor key
// validation for the Open Lovable service.
//
// Every outbound integration (E2B, Firecrawl, AvalAI, Google Generative AI, Groq)
// is gated by an API key read from the environment. The requirement table below
// is the single place that knows which prefix each vendor issues.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Environment constants
const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Vendor key environment variables
const (
	EnvE2BAPIKey       = "E2B_API_KEY"
	EnvFirecrawlAPIKey = "FIRECRAWL_API_KEY"
	EnvAvalAIAPIKey    = "AVALAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENERATIVE_AI_API_KEY"
	EnvGroqAPIKey      = "GROQ_API_KEY"
	EnvDefaultModel    = "DEFAULT_MODEL"
)

var (
	// ErrKeyMissing is returned when a vendor key is not set.
	ErrKeyMissing = errors.New("api key not configured")
	// ErrKeyMalformed is returned when a vendor key does not carry the expected prefix.
	ErrKeyMalformed = errors.New("api key malformed")
)

// strictE2BKey is the exact shape E2B issues; only the key test endpoint enforces it.
var strictE2BKey = regexp.MustCompile(`(?i)^e2b_[a-z0-9]{32}$`)

// KeyRequirement defines a vendor API key and its validation rules
type KeyRequirement struct {
	Name        string
	EnvVar      string
	Description string
	Prefixes    []string // accepted prefixes; empty means any value is accepted
	Critical    bool     // reported as an issue by the debug endpoint when missing
}

// KeyStatus is the redacted view of a key exposed by diagnostics endpoints.
type KeyStatus struct {
	Exists bool   `json:"exists"`
	Length int    `json:"length"`
	Format string `json:"format,omitempty"`
}

// KeyValidationError collects problems found across all vendor keys
type KeyValidationError struct {
	Missing  []string
	Invalid  []string
	Warnings []string
}

func (e *KeyValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing keys: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid keys: %s", strings.Join(e.Invalid, ", ")))
	}
	return strings.Join(parts, "; ")
}

func (e *KeyValidationError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Invalid) > 0
}

// VendorKeys returns the key requirements in the order diagnostics report them
func VendorKeys() []KeyRequirement {
	return []KeyRequirement{
		{
			Name:        "E2B",
			EnvVar:      EnvE2BAPIKey,
			Description: "E2B sandbox API key",
			Prefixes:    []string{"E2b_", "e2b_"},
			Critical:    true,
		},
		{
			Name:        "Firecrawl",
			EnvVar:      EnvFirecrawlAPIKey,
			Description: "Firecrawl scrape and screenshot API key",
			Prefixes:    []string{"fc-"},
			Critical:    true,
		},
		{
			Name:        "AvalAI",
			EnvVar:      EnvAvalAIAPIKey,
			Description: "AvalAI OpenAI-compatible gateway key",
			Prefixes:    []string{"aa-"},
			Critical:    true,
		},
		{
			Name:        "Google Generative AI",
			EnvVar:      EnvGoogleAPIKey,
			Description: "Google Generative AI (Gemini) key",
			Prefixes:    []string{"AIza"},
		},
		{
			Name:        "Groq",
			EnvVar:      EnvGroqAPIKey,
			Description: "Groq OpenAI-compatible inference key",
		},
	}
}

// HasValidPrefix reports whether value starts with one of the accepted prefixes.
// Requirements without prefixes accept any non-empty value.
func (r KeyRequirement) HasValidPrefix(value string) bool {
	if len(r.Prefixes) == 0 {
		return value != ""
	}
	for _, p := range r.Prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

// InspectKey reports whether the key exists and whether it looks well formed.
// Format is left empty for keys that have no known prefix.
func InspectKey(req KeyRequirement) KeyStatus {
	value := os.Getenv(req.EnvVar)
	status := KeyStatus{
		Exists: value != "",
		Length: len(value),
	}
	if len(req.Prefixes) > 0 {
		status.Format = "Invalid"
		if req.HasValidPrefix(value) {
			status.Format = "Valid"
		}
	}
	return status
}

// ValidateKeys checks every vendor key. Missing keys are only warnings: each
// route reports its own missing key at request time.
func ValidateKeys() *KeyValidationError {
	result := &KeyValidationError{}
	for _, req := range VendorKeys() {
		value := os.Getenv(req.EnvVar)
		if value == "" {
			if req.Critical {
				result.Missing = append(result.Missing, req.EnvVar)
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s not set - %s disabled", req.EnvVar, req.Name))
			}
			continue
		}
		if !req.HasValidPrefix(value) {
			result.Invalid = append(result.Invalid,
				fmt.Sprintf("%s: expected prefix %s", req.EnvVar, strings.Join(req.Prefixes, " or ")))
		}
	}
	return result
}

// ValidateE2BKey accepts either casing of the e2b_ prefix.
func ValidateE2BKey(key string) error {
	if key == "" {
		return ErrKeyMissing
	}
	if !strings.HasPrefix(key, "e2b_") && !strings.HasPrefix(key, "E2b_") {
		return ErrKeyMalformed
	}
	return nil
}

// ValidateE2BKeyStrict enforces the lowercase prefix used when reconnecting to sandboxes.
func ValidateE2BKeyStrict(key string) error {
	if key == "" {
		return ErrKeyMissing
	}
	if !strings.HasPrefix(key, "e2b_") {
		return ErrKeyMalformed
	}
	return nil
}

// IsCanonicalE2BKey reports whether key has the exact e2b_ + 32 alphanumerics shape.
func IsCanonicalE2BKey(key string) bool {
	return strictE2BKey.MatchString(key)
}

// RedactKey returns the first n characters followed by "..." or NOT_SET.
func RedactKey(value string, n int) string {
	if value == "" {
		return "NOT_SET"
	}
	if len(value) > n {
		value = value[:n]
	}
	return value + "..."
}

// GetEnvironment returns the current environment name
func GetEnvironment() string {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = EnvDevelopment
	}
	return strings.ToLower(env)
}

// IsProductionEnvironment returns true if running in production
func IsProductionEnvironment() bool {
	env := GetEnvironment()
	return env == EnvProduction || env == "prod"
}

// IsDevelopmentEnvironment returns true for development and unset environments
func IsDevelopmentEnvironment() bool {
	env := GetEnvironment()
	return env == EnvDevelopment || env == "dev"
}

// GetWithDefault returns the env var value or the default when unset
func GetWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}
