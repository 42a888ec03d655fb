package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tessara/gemini-assistant/internal/config"
	"gorm.io/gorm"
)

// SettingsSource adapts the settings singleton to the config resolver's
// Source interface and notifies the resolver on update.
type SettingsSource struct {
	store *Store

	// onUpdate is called after a successful settings write, so cached
	// resolutions can be invalidated process-wide.
	onUpdate func()
}

// NewSettingsSource creates the source. onUpdate may be nil.
func NewSettingsSource(store *Store, onUpdate func()) *SettingsSource {
	return &SettingsSource{store: store, onUpdate: onUpdate}
}

// SetOnUpdate wires the invalidation hook after construction (the resolver
// and the source reference each other).
func (s *SettingsSource) SetOnUpdate(fn func()) {
	s.onUpdate = fn
}

// Settings loads the singleton record. A missing row yields an empty
// record so resolution falls back to defaults and the config file.
func (s *SettingsSource) Settings(ctx context.Context) (*config.Record, error) {
	var row Settings
	err := s.store.db.WithContext(ctx).First(&row, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &config.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	// A persisted row carries an explicit toggle value; only a missing row
	// leaves the tri-state unset.
	return &config.Record{
		APIKey:                row.APIKey,
		Model:                 row.Model,
		MaxTokens:             row.MaxTokens,
		Temperature:           row.Temperature,
		TopP:                  row.TopP,
		TopK:                  row.TopK,
		SafetySettings:        row.SafetySettings,
		EnableGrounding:       row.EnableGrounding,
		EnableFunctionCalling: &row.EnableFunctionCalling,
	}, nil
}

// Update writes the settings singleton and fires the invalidation hook.
func (s *SettingsSource) Update(ctx context.Context, record config.Record) error {
	enableFunctionCalling := record.EnableFunctionCalling == nil || *record.EnableFunctionCalling
	row := Settings{
		ID:                    1,
		APIKey:                record.APIKey,
		Model:                 record.Model,
		MaxTokens:             record.MaxTokens,
		Temperature:           record.Temperature,
		TopP:                  record.TopP,
		TopK:                  record.TopK,
		SafetySettings:        record.SafetySettings,
		EnableGrounding:       record.EnableGrounding,
		EnableFunctionCalling: enableFunctionCalling,
		UpdatedAt:             s.store.now(),
	}

	if err := s.store.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("updating settings: %w", err)
	}

	if s.onUpdate != nil {
		s.onUpdate()
	}
	return nil
}
