package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tessara/gemini-assistant/internal/provider/models"
	"gorm.io/gorm"
)

// DefaultHistoryWindow is the number of recent messages seeded into the
// next model call.
const DefaultHistoryWindow = 5

// DefaultRetainedMessages is the pruning cap per conversation.
const DefaultRetainedMessages = 50

// TurnOutcome captures the assistant side of a turn for persistence.
type TurnOutcome struct {
	Text         string
	ToolCall     *models.ToolCall
	ActionsTaken map[string]any
	Citations    []string
	IsError      bool
	ErrorMessage string
}

// CreateConversation creates a conversation for user. When title is empty a
// timestamped one is generated.
func (s *Store) CreateConversation(ctx context.Context, user, title string, convContext map[string]any) (*Conversation, error) {
	now := s.now()
	if title == "" {
		title = fmt.Sprintf("Conversation %s", now.Format("2006-01-02 15:04"))
	}

	conv := &Conversation{
		ID:        uuid.NewString(),
		User:      user,
		Title:     title,
		Context:   convContext,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation removes a conversation and, by cascade, its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// sqlite does not always enforce FK cascades; delete children first.
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Conversation{}, "id = ?", id).Error
	})
}

// LogTurn persists exactly two messages for the turn: the user's prompt,
// then the assistant's answer, in that order with strictly increasing
// timestamps. The conversation is created lazily when conversationID is
// empty, carrying turnContext; the context blob is also recorded on the
// user message. Returns the conversation id and the assistant message's id,
// the canonical handle for the turn.
func (s *Store) LogTurn(ctx context.Context, conversationID, user, prompt string, turnContext map[string]any, outcome TurnOutcome) (convID string, assistantMessageID string, err error) {
	if conversationID == "" {
		conv, err := s.CreateConversation(ctx, user, "", turnContext)
		if err != nil {
			return "", "", fmt.Errorf("creating conversation for turn: %w", err)
		}
		conversationID = conv.ID
	}

	userTS := s.now()
	assistantTS := userTS.Add(time.Millisecond)

	userMsg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        prompt,
		Context:        turnContext,
		Timestamp:      userTS,
	}

	assistantMsg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Content:        outcome.Text,
		ToolCall:       outcome.ToolCall,
		ActionsTaken:   outcome.ActionsTaken,
		Citations:      outcome.Citations,
		IsError:        outcome.IsError,
		ErrorMessage:   outcome.ErrorMessage,
		Timestamp:      assistantTS,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		if err := tx.Create(assistantMsg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).Where("id = ?", conversationID).
			Update("updated_at", assistantTS).Error
	})
	if err != nil {
		return "", "", fmt.Errorf("logging turn: %w", err)
	}

	// Keep the conversation at its retention cap. A pruning failure never
	// fails the turn that was just recorded.
	if _, err := s.Prune(ctx, conversationID, DefaultRetainedMessages); err != nil {
		s.logger.Warn("could not prune conversation", "conversation", conversationID, "error", err)
	}

	return conversationID, assistantMsg.ID, nil
}

// History returns up to limit messages of a conversation, newest first.
func (s *Store) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp desc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return messages, nil
}

// HistoryForModel returns the most recent messages as role-tagged provider
// messages in chronological order, ready to seed the next call.
func (s *Store) HistoryForModel(ctx context.Context, conversationID string, window int) ([]models.Message, error) {
	if window <= 0 {
		window = DefaultHistoryWindow
	}

	recent, err := s.History(ctx, conversationID, window)
	if err != nil {
		return nil, err
	}

	// History returns newest first; the model wants chronological order.
	history := make([]models.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		history = append(history, models.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return history, nil
}

// Prune trims a conversation to its newest keep messages. Used by the
// maintenance job; the conversation row itself is never pruned.
func (s *Store) Prune(ctx context.Context, conversationID string, keep int) (removed int64, err error) {
	if keep <= 0 {
		keep = DefaultRetainedMessages
	}

	var cutoffIDs []string
	err = s.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ?", conversationID).
		Order("timestamp desc").
		Limit(keep).
		Pluck("id", &cutoffIDs).Error
	if err != nil {
		return 0, fmt.Errorf("selecting retained messages: %w", err)
	}
	if len(cutoffIDs) < keep {
		return 0, nil // nothing beyond the cap
	}

	res := s.db.WithContext(ctx).
		Where("conversation_id = ? AND id NOT IN ?", conversationID, cutoffIDs).
		Delete(&Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// GetMessage loads a message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}
