// Package orchestrator wires one user message end to end: content assembly,
// the rate-limited and retried model call, response interpretation, the
// single tool round-trip, the follow-up call, and durable logging.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessara/gemini-assistant/internal/assembler"
	"github.com/tessara/gemini-assistant/internal/config"
	"github.com/tessara/gemini-assistant/internal/provider/models"
	"github.com/tessara/gemini-assistant/internal/ratelimit"
	"github.com/tessara/gemini-assistant/internal/store"
	"github.com/tessara/gemini-assistant/internal/tool"
)

// User-safe messages. Full error detail goes only to the operational log.
const (
	msgRateLimited   = "The assistant is receiving too many requests. Please try again after a short while."
	msgProviderError = "An unexpected error occurred while communicating with the assistant. Please try again later."
	msgBlocked       = "The response was blocked by content safety settings."
	msgNotConfigured = "The assistant is not configured. Please set the API key in the assistant settings."
)

// Assembler builds provider content parts from a prompt and attachments.
type Assembler interface {
	Assemble(ctx context.Context, prompt string, attachments []assembler.Attachment) ([]models.Part, error)
}

// ConversationLog persists turns and reconstructs history.
type ConversationLog interface {
	LogTurn(ctx context.Context, conversationID, user, prompt string, turnContext map[string]any, outcome store.TurnOutcome) (string, string, error)
	HistoryForModel(ctx context.Context, conversationID string, window int) ([]models.Message, error)
}

// Auditor records significant events. Failures degrade observability only.
type Auditor interface {
	RecordQuery(ctx context.Context, user, prompt, response string, detail map[string]any) error
}

// Gateway executes model-requested tool calls.
type Gateway interface {
	Invoke(ctx context.Context, call models.ToolCall, caller tool.Caller) (tool.Result, error)
}

// Declarations supplies the enabled tool declarations for a call.
type Declarations interface {
	EnabledDeclarations() []models.ToolDeclaration
}

// Request is one inbound user message.
type Request struct {
	User           string
	Roles          []string
	Message        string
	ConversationID string
	Attachments    []assembler.Attachment
	Context        map[string]any
}

// Response is the structured outcome of a turn. Error carries a user-safe
// message; internal errors never escape unconverted.
type Response struct {
	Text              string           `json:"text"`
	ToolCall          *models.ToolCall `json:"tool_call,omitempty"`
	NeedsConfirmation bool             `json:"needs_confirmation,omitempty"`
	Citations         []string         `json:"citations"`
	Error             bool             `json:"error"`
	Message           string           `json:"message,omitempty"`
	ConversationID    string           `json:"conversation_id,omitempty"`
	MessageID         string           `json:"message_id,omitempty"`
}

// Orchestrator coordinates the turn pipeline.
type Orchestrator struct {
	resolver  *config.Resolver
	provider  models.Provider
	assembler Assembler
	limiter   *ratelimit.Limiter
	retrier   *ratelimit.Retrier
	gateway   Gateway
	decls     Declarations
	log       ConversationLog
	audit     Auditor
	sanitizer *Sanitizer
	logger    *slog.Logger
}

// New creates an Orchestrator. sanitizer may be nil to disable masking.
func New(
	resolver *config.Resolver,
	provider models.Provider,
	asm Assembler,
	limiter *ratelimit.Limiter,
	retrier *ratelimit.Retrier,
	gateway Gateway,
	decls Declarations,
	log ConversationLog,
	audit Auditor,
	sanitizer *Sanitizer,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if sanitizer == nil {
		sanitizer = NewSanitizer(nil)
	}
	return &Orchestrator{
		resolver:  resolver,
		provider:  provider,
		assembler: asm,
		limiter:   limiter,
		retrier:   retrier,
		gateway:   gateway,
		decls:     decls,
		log:       log,
		audit:     audit,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// ProcessMessage handles one user turn synchronously: at most one tool
// round-trip, then a follow-up natural-language answer, then durable
// logging. All internal errors are converted to a structured error
// response at this boundary.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req Request) Response {
	resolved, err := o.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, config.ErrAPIKeyMissing) {
			o.logger.Error("assistant not configured", "error", err)
			return Response{Error: true, Message: msgNotConfigured, Citations: []string{}}
		}
		o.logger.Error("settings resolution failed", "error", err)
		return Response{Error: true, Message: msgProviderError, Citations: []string{}}
	}

	prompt := o.sanitizer.Sanitize(req.Message)

	var history []models.Message
	if req.ConversationID != "" {
		history, err = o.log.HistoryForModel(ctx, req.ConversationID, store.DefaultHistoryWindow)
		if err != nil {
			// A missing history must not kill the turn.
			o.logger.Warn("could not load conversation history", "conversation", req.ConversationID, "error", err)
			history = nil
		}
	}

	parts, err := o.assembler.Assemble(ctx, prompt, req.Attachments)
	if err != nil {
		o.logger.Error("content assembly failed", "error", err)
		return Response{Error: true, Message: msgProviderError, Citations: []string{}}
	}

	genResp, errResp := o.generate(ctx, resolved, parts, history)
	if errResp != nil {
		o.logTurn(ctx, req, prompt, store.TurnOutcome{
			IsError:      true,
			ErrorMessage: errResp.Message,
		}, errResp)
		return *errResp
	}

	resp := Response{
		Text:      genResp.Text,
		ToolCall:  genResp.ToolCall,
		Citations: genResp.Citations,
	}
	outcome := store.TurnOutcome{
		Text:      genResp.Text,
		ToolCall:  genResp.ToolCall,
		Citations: genResp.Citations,
	}

	if genResp.ToolCall != nil {
		o.runToolRoundTrip(ctx, resolved, req, *genResp.ToolCall, &resp, &outcome)
	}

	o.logTurn(ctx, req, prompt, outcome, &resp)

	// The context blob travels with the logged turn; the audit entry only
	// needs the exchange itself.
	if err := o.audit.RecordQuery(ctx, req.User, prompt, resp.Text, nil); err != nil {
		o.logger.Warn("failed to record query audit entry", "error", err)
	}

	return resp
}

// runToolRoundTrip executes the single permitted tool invocation and, when
// an envelope came back (success or captured failure), issues the follow-up
// call so the model can phrase the result for the user.
func (o *Orchestrator) runToolRoundTrip(ctx context.Context, resolved *config.Resolved, req Request, call models.ToolCall, resp *Response, outcome *store.TurnOutcome) {
	result, invErr := o.gateway.Invoke(ctx, call, tool.Caller{User: req.User, Roles: req.Roles})

	switch result.State {
	case tool.StateNeedsConfirmation:
		resp.NeedsConfirmation = true
		resp.Message = fmt.Sprintf("Function %q requires user confirmation before execution.", call.Name)
		return

	case tool.StateRejected:
		o.logger.Warn("tool call rejected", "tool", call.Name, "error", invErr)
		resp.Message = rejectionMessage(call.Name, invErr)
		return
	}

	if result.Payload != nil {
		if m, ok := result.Payload.(map[string]any); ok {
			outcome.ActionsTaken = m
		} else {
			outcome.ActionsTaken = map[string]any{"result": result.Payload}
		}
	}

	if result.Envelope == nil {
		return
	}

	// Follow-up turn: hand the tool result back and ask for a user-friendly
	// answer. Failures here keep the placeholder text rather than erroring
	// the whole turn.
	resultJSON, err := json.Marshal(result.Envelope.Response["content"])
	if err != nil {
		resultJSON = []byte(fmt.Sprintf("%v", result.Envelope.Response["content"]))
	}
	followPrompt := fmt.Sprintf(
		"I executed the function %s and got the following result: %s. Please provide a user-friendly response based on this result.",
		call.Name, resultJSON)

	followResp, errResp := o.generate(ctx, resolved, []models.Part{{Text: followPrompt}}, nil)
	if errResp != nil {
		o.logger.Warn("follow-up generation failed", "tool", call.Name, "message", errResp.Message)
		return
	}

	resp.Text = followResp.Text
	outcome.Text = followResp.Text
}

// generate runs one budget-checked, retry-wrapped model call. The returned
// *Response is non-nil only on failure and carries the user-safe outcome.
func (o *Orchestrator) generate(ctx context.Context, resolved *config.Resolved, parts []models.Part, history []models.Message) (*models.GenerateResponse, *Response) {
	if err := o.limiter.Allow(); err != nil {
		o.logger.Warn("local rate budget exceeded")
		return nil, &Response{Error: true, Message: msgRateLimited, Citations: []string{}}
	}

	genReq := &models.GenerateRequest{
		Model:   resolved.Model,
		Parts:   parts,
		History: history,
		Config: &models.GenerateConfig{
			MaxOutputTokens: resolved.MaxTokens,
			Temperature:     ptr(resolved.Temperature),
			TopP:            ptr(resolved.TopP),
			TopK:            ptr(resolved.TopK),
		},
		Safety: toProviderSafety(resolved.Safety),
	}

	// Tool declarations are passed only when function calling is enabled
	// and at least one enabled definition exists.
	if resolved.EnableFunctionCalling {
		if decls := o.decls.EnabledDeclarations(); len(decls) > 0 {
			genReq.Tools = decls
		}
	}

	resp, err := o.retrier.Do(ctx, func(ctx context.Context) (*models.GenerateResponse, error) {
		return o.provider.Generate(ctx, genReq)
	})
	if err != nil {
		if models.IsBlocked(err) {
			o.logger.Warn("response blocked by safety settings", "error", err)
			return nil, &Response{Error: true, Message: msgBlocked, Citations: []string{}}
		}
		o.logger.Error("generation failed", "error", err)
		return nil, &Response{Error: true, Message: msgProviderError, Citations: []string{}}
	}

	return resp, nil
}

// logTurn persists both sides of the turn. A persistence failure is logged
// and swallowed: it degrades audit, never the user-visible answer. The
// missing MessageID tells the caller the turn was not durably recorded.
func (o *Orchestrator) logTurn(ctx context.Context, req Request, prompt string, outcome store.TurnOutcome, resp *Response) {
	convID, msgID, err := o.log.LogTurn(ctx, req.ConversationID, req.User, prompt, req.Context, outcome)
	if err != nil {
		o.logger.Error("failed to log conversation turn", "error", err)
		resp.ConversationID = req.ConversationID
		return
	}
	resp.ConversationID = convID
	resp.MessageID = msgID
}

func rejectionMessage(name string, err error) string {
	switch {
	case errors.Is(err, tool.ErrUnknownTool):
		return fmt.Sprintf("Function definition %q not found.", name)
	case errors.Is(err, tool.ErrToolDisabled):
		return fmt.Sprintf("Function %q is currently disabled.", name)
	case errors.Is(err, tool.ErrPermissionDenied):
		return fmt.Sprintf("You do not have permission to execute the function %q.", name)
	default:
		return fmt.Sprintf("Function %q could not be executed.", name)
	}
}

func toProviderSafety(settings []config.SafetySetting) []models.SafetySetting {
	if len(settings) == 0 {
		return nil
	}
	out := make([]models.SafetySetting, 0, len(settings))
	for _, s := range settings {
		out = append(out, models.SafetySetting{Category: s.Category, Threshold: s.Threshold})
	}
	return out
}

func ptr[T any](v T) *T { return &v }
