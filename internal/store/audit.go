package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// RecordQuery appends an audit entry for a prompt/response exchange. detail
// carries optional structured context supplied with the exchange.
func (s *Store) RecordQuery(ctx context.Context, user, prompt, response string, detail map[string]any) error {
	return s.record(ctx, &AuditLog{
		User:     user,
		Action:   AuditActionQuery,
		Prompt:   prompt,
		Response: response,
		Actions:  detail,
	})
}

// RecordFunctionCall appends an audit entry for an executed tool.
// Implements the gateway's AuditRecorder.
func (s *Store) RecordFunctionCall(ctx context.Context, user, name string, args map[string]any, result any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		resultJSON = []byte(fmt.Sprintf("%v", result))
	}
	return s.record(ctx, &AuditLog{
		User:     user,
		Action:   AuditActionFunctionCall,
		Prompt:   name,
		Response: string(resultJSON),
		Actions: map[string]any{
			"function": name,
			"args":     args,
		},
	})
}

// RecordDocumentChange appends an audit entry for an assistant-driven
// document modification.
func (s *Store) RecordDocumentChange(ctx context.Context, user, document string, changes map[string]any) error {
	return s.record(ctx, &AuditLog{
		User:     user,
		Action:   AuditActionDocumentChange,
		Document: document,
		Actions:  changes,
	})
}

func (s *Store) record(ctx context.Context, entry *AuditLog) error {
	entry.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// AuditByUser lists a user's audit entries, newest first.
func (s *Store) AuditByUser(ctx context.Context, user string, limit int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []AuditLog
	err := s.db.WithContext(ctx).
		Where("user = ?", user).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// AuditByDocument lists audit entries referencing a document, newest first.
func (s *Store) AuditByDocument(ctx context.Context, document string, limit int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []AuditLog
	err := s.db.WithContext(ctx).
		Where("document = ?", document).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
