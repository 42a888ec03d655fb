package models

// GenerateRequest encapsulates all parameters for a generation request.
type GenerateRequest struct {
	// Model overrides the provider's configured model for this call.
	// Empty means "use the provider's current model".
	Model string

	// Parts is the assembled content for this turn (prompt text plus any
	// attachment-derived parts).
	Parts []Part

	// History contains prior conversation turns. When non-empty the call is
	// issued as a multi-turn request seeded with these messages; when empty
	// a single-turn request is made. The two shapes are mutually exclusive.
	History []Message

	// Tools contains tool declarations for native tool calling. Must be
	// left empty when function calling is disabled.
	Tools []ToolDeclaration

	// Config contains optional generation parameters.
	Config *GenerateConfig

	// Safety contains per-category blocking thresholds. Nil means
	// "use provider defaults".
	Safety []SafetySetting
}

// Part is a single piece of request content. Exactly one field is set.
type Part struct {
	// Text content, including inlined extracted document text.
	Text string

	// FileURI references a file previously uploaded to the provider's
	// file store. MIMEType must be set alongside.
	FileURI  string
	MIMEType string
}

// Message is one prior turn of the conversation. History carries text only;
// tool results are handed back to the model via a follow-up text prompt.
type Message struct {
	// Role is "user" or "assistant" ("model" is accepted as an alias).
	Role    string
	Content string
}

// ToolCall is a structured request by the model to invoke a named tool.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResultEnvelope is the provider-shaped wrapper handed back to the
// model after tool execution: {name, response:{content: <payload>}}.
type ToolResultEnvelope struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// NewToolResultEnvelope wraps a tool result payload in the shape the
// provider expects for function responses.
func NewToolResultEnvelope(name string, content any) *ToolResultEnvelope {
	return &ToolResultEnvelope{
		Name:     name,
		Response: map[string]any{"content": content},
	}
}

// GenerateConfig contains optional generation parameters.
// Pointer fields distinguish "not set" from explicit zero values.
type GenerateConfig struct {
	MaxOutputTokens int32
	Temperature     *float32
	TopP            *float32
	TopK            *int32
}

// SafetySetting overrides the blocking threshold for one harm category.
type SafetySetting struct {
	Category  string
	Threshold string
}

// GenerateResponse is the interpreted result of a model call.
type GenerateResponse struct {
	// Text is the answer text. When the model produced only a tool call,
	// this carries a placeholder status string referencing the tool name so
	// the turn is never persisted with empty content.
	Text string

	// ToolCall is the first (and only honored) tool call in the response,
	// or nil.
	ToolCall *ToolCall

	// Citations from provider-side grounding. Always non-nil, empty in the
	// canonical path.
	Citations []string

	// Metadata contains token accounting for the call.
	Metadata ResponseMetadata
}

// ResponseMetadata contains information about the generation.
type ResponseMetadata struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ModelUsed        string
}

// ToolDeclaration describes a tool to the model.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  *ParameterSchema // nil means no params
}

// ParameterSchema maps directly to standard JSON Schema. Tool parameter
// specs must declare an object type with a properties map.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema defines a single parameter property.
type PropertySchema struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
}
