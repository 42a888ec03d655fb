package config

import (
	"context"
	"errors"
)

// Default generation parameters, applied when the settings record leaves a
// field unset.
const (
	DefaultModel       = "gemini-1.5-pro"
	DefaultMaxTokens   = 8192
	DefaultTemperature = 0.7
	DefaultTopP        = 0.95
	DefaultTopK        = 40
)

// ErrAPIKeyMissing is the fatal configuration error returned when no API
// key can be resolved from the settings record or the config file. Callers
// must not proceed with generation.
var ErrAPIKeyMissing = errors.New("gemini API key not configured")

// Record is the raw settings record as stored by the settings collaborator.
// Zero values mean "unset, use the default".
type Record struct {
	APIKey          string
	Model           string
	MaxTokens       int
	Temperature     float64
	TopP            float64
	TopK            int
	SafetySettings  string // JSON map of category -> threshold
	EnableGrounding bool

	// EnableFunctionCalling is a tri-state toggle: nil means the record
	// never set it, and function calling defaults to enabled.
	EnableFunctionCalling *bool
}

// Source supplies the current settings record.
type Source interface {
	Settings(ctx context.Context) (*Record, error)
}

// Resolved is the outcome of settings resolution: everything a generation
// call needs, with defaults applied and the API key located.
type Resolved struct {
	APIKey                string
	Model                 string
	MaxTokens             int32
	Temperature           float32
	TopP                  float32
	TopK                  int32
	Safety                []SafetySetting
	EnableGrounding       bool
	EnableFunctionCalling bool
}

// SafetySetting is one category -> threshold override. An empty slice means
// "use provider defaults".
type SafetySetting struct {
	Category  string
	Threshold string
}
