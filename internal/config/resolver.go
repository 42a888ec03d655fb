package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Resolver resolves the API key and generation parameters from the settings
// record, falling back to the process config file for the key. The resolved
// settings are cached until Invalidate is called; the settings collaborator
// must invalidate on update.
type Resolver struct {
	source Source
	loader *Loader
	logger *slog.Logger

	mu     sync.Mutex
	cached *Resolved
}

// NewResolver creates a Resolver over the given settings source and config
// file loader.
func NewResolver(source Source, loader *Loader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		loader = NewLoader()
	}
	return &Resolver{
		source: source,
		loader: loader,
		logger: logger,
	}
}

// Resolve returns the cached settings, resolving them on first use.
// A missing API key is a fatal configuration error.
func (r *Resolver) Resolve(ctx context.Context) (*Resolved, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached, nil
	}

	record, err := r.source.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings record: %w", err)
	}
	if record == nil {
		record = &Record{}
	}

	resolved := &Resolved{
		Model:           record.Model,
		MaxTokens:       int32(record.MaxTokens),
		Temperature:     float32(record.Temperature),
		TopP:            float32(record.TopP),
		TopK:            int32(record.TopK),
		EnableGrounding: record.EnableGrounding,

		// Function calling is on unless the record explicitly disabled it.
		EnableFunctionCalling: record.EnableFunctionCalling == nil || *record.EnableFunctionCalling,
	}
	if resolved.Model == "" {
		resolved.Model = DefaultModel
	}
	if resolved.MaxTokens == 0 {
		resolved.MaxTokens = DefaultMaxTokens
	}
	if resolved.Temperature == 0 {
		resolved.Temperature = DefaultTemperature
	}
	if resolved.TopP == 0 {
		resolved.TopP = DefaultTopP
	}
	if resolved.TopK == 0 {
		resolved.TopK = DefaultTopK
	}

	resolved.Safety = r.parseSafetySettings(record.SafetySettings)

	resolved.APIKey = record.APIKey
	if resolved.APIKey == "" {
		fileCfg, err := r.loader.Load()
		if err != nil {
			r.logger.Warn("could not read config file for API key fallback", "error", err)
		} else {
			resolved.APIKey = fileCfg.GeminiAPIKey
		}
	}
	if resolved.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	r.cached = resolved
	return resolved, nil
}

// Invalidate clears the cached settings so the next Resolve re-reads the
// record. Called by the settings collaborator's update hook.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

// parseSafetySettings parses the JSON category->threshold map. Malformed
// JSON or invalid entries degrade to provider defaults (no override) rather
// than failing resolution.
func (r *Resolver) parseSafetySettings(raw string) []SafetySetting {
	if raw == "" {
		return nil
	}

	var entries map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.logger.Warn("malformed safety settings, using provider defaults", "error", err)
		return nil
	}

	settings := make([]SafetySetting, 0, len(entries))
	for category, threshold := range entries {
		ts, ok := threshold.(string)
		if !ok || category == "" || ts == "" {
			r.logger.Warn("skipping invalid safety setting entry",
				"category", category, "threshold", threshold)
			continue
		}
		settings = append(settings, SafetySetting{Category: category, Threshold: ts})
	}

	if len(settings) == 0 {
		return nil
	}
	return settings
}
