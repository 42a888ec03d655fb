package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// RecordFeedback stores one feedback event for a message and updates the
// message's aggregate counters. Neutral feedback is recorded without
// touching the counters.
func (s *Store) RecordFeedback(ctx context.Context, messageID, user, value string) error {
	switch value {
	case FeedbackPositive, FeedbackNegative, FeedbackNeutral:
	default:
		return fmt.Errorf("invalid feedback value %q", value)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg Message
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			return fmt.Errorf("loading message: %w", err)
		}

		entry := &Feedback{
			MessageID: messageID,
			User:      user,
			Value:     value,
			CreatedAt: s.now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("recording feedback: %w", err)
		}

		switch value {
		case FeedbackPositive:
			return tx.Model(&msg).Update("positive_feedback", gorm.Expr("positive_feedback + 1")).Error
		case FeedbackNegative:
			return tx.Model(&msg).Update("negative_feedback", gorm.Expr("negative_feedback + 1")).Error
		}
		return nil
	})
}
