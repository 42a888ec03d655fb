// Package store holds the durable records of the assistant: conversations,
// messages, audit entries, feedback, the settings singleton, and the demo
// business tables used by the builtin tools.
package store

import (
	"time"

	"github.com/tessara/gemini-assistant/internal/provider/models"
)

// Roles a message can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Audit action kinds.
const (
	AuditActionQuery          = "query"
	AuditActionFunctionCall   = "function_call"
	AuditActionDocumentChange = "document_change"
)

// Feedback values.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
	FeedbackNeutral  = "neutral"
)

// Conversation is the durable container for a chat thread. Created lazily
// on first message, never auto-expired. Deleting a conversation cascades to
// its messages.
type Conversation struct {
	ID        string `gorm:"primaryKey"`
	User      string `gorm:"index"`
	Title     string
	Context   map[string]any `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []Message `gorm:"constraint:OnDelete:CASCADE"`
}

// Message is one entry of a conversation turn. Within a conversation,
// messages are totally ordered by Timestamp.
type Message struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"index"`
	Role           string
	Content        string

	// Context is the caller-supplied context blob, recorded on the user
	// message of the turn that carried it.
	Context map[string]any `gorm:"serializer:json"`

	// ToolCall is set on assistant messages that requested a tool.
	ToolCall *models.ToolCall `gorm:"serializer:json"`

	// ActionsTaken captures the structured result of an executed tool.
	ActionsTaken map[string]any `gorm:"serializer:json"`

	Citations []string `gorm:"serializer:json"`

	IsError      bool
	ErrorMessage string

	PositiveFeedback int
	NegativeFeedback int

	Timestamp time.Time `gorm:"index"`
}

// AuditLog is an append-only record of a significant event. Entries are
// created once and never mutated.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	User      string `gorm:"index"`
	Action    string `gorm:"index"`
	Document  string `gorm:"index"` // optional subject document reference
	Prompt    string
	Response  string
	Actions   map[string]any `gorm:"serializer:json"`
	CreatedAt time.Time
}

// Feedback is one user reaction to an assistant message.
type Feedback struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID string `gorm:"index"`
	User      string
	Value     string
	CreatedAt time.Time
}

// Settings is the singleton assistant configuration record.
type Settings struct {
	ID                    uint `gorm:"primaryKey"`
	APIKey                string
	Model                 string
	MaxTokens             int
	Temperature           float64
	TopP                  float64
	TopK                  int
	SafetySettings        string // JSON map of category -> threshold
	EnableGrounding       bool
	EnableFunctionCalling bool
	UpdatedAt             time.Time
}

// StockLevel backs the check_stock_levels builtin tool.
type StockLevel struct {
	ItemCode  string `gorm:"primaryKey"`
	Warehouse string `gorm:"primaryKey"`
	Qty       float64
}

// Invoice backs the sales report and overdue invoice builtin tools.
type Invoice struct {
	ID          string `gorm:"primaryKey"`
	Customer    string `gorm:"index"`
	Total       float64
	Outstanding float64
	Status      string
	PostingDate time.Time `gorm:"index"`
	DueDate     time.Time
}
