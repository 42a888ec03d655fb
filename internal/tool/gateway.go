package tool

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tessara/gemini-assistant/internal/provider/models"
)

// State tracks the progress of one invocation through the gateway.
type State string

const (
	StateRejected          State = "rejected"
	StateNeedsConfirmation State = "needs_confirmation"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
)

// Caller identifies who is invoking the tool.
type Caller struct {
	User  string
	Roles []string
}

// Result is the gateway outcome for one invocation.
type Result struct {
	State State

	// Envelope is the provider-shaped tool response. Set for Succeeded and
	// Failed (carrying the error text so the model can explain gracefully);
	// nil for rejections and confirmation gating.
	Envelope *models.ToolResultEnvelope

	// Payload is the raw handler result on success, for persistence.
	Payload any

	// NeedsConfirmation flags the confirmation gate for the caller to
	// surface; no execution happened.
	NeedsConfirmation bool
}

// AuditRecorder records successful tool executions. Failures to record are
// logged, never propagated.
type AuditRecorder interface {
	RecordFunctionCall(ctx context.Context, user, name string, args map[string]any, result any) error
}

// ScriptRunner executes the deprecated inline-script implementation in an
// isolated environment.
type ScriptRunner interface {
	Run(ctx context.Context, script string, args map[string]any) (string, error)
}

// Gateway validates a requested tool against the registry, executes it, and
// shapes the result into the provider's tool-response envelope.
type Gateway struct {
	registry *Registry
	legacy   ScriptRunner
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewGateway creates a Gateway. legacy and audit may be nil; a nil legacy
// runner disables the deprecated script path entirely.
func NewGateway(registry *Registry, legacy ScriptRunner, audit AuditRecorder, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		registry: registry,
		legacy:   legacy,
		audit:    audit,
		logger:   logger,
	}
}

// Invoke runs the gateway state machine for one tool call:
//
//	Requested -> Rejected(no-definition | disabled | permission)
//	          -> NeedsConfirmation
//	          -> Executing -> Succeeded | Failed
//
// Rejections and the confirmation gate return a Result with the matching
// sentinel error. Execution failures return StateFailed with a nil error:
// the failure is captured inside the envelope so the model can be told the
// tool failed rather than aborting the whole turn.
func (g *Gateway) Invoke(ctx context.Context, call models.ToolCall, caller Caller) (Result, error) {
	def, ok := g.registry.Lookup(call.Name)
	if !ok {
		return Result{State: StateRejected}, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}

	if !def.Enabled {
		return Result{State: StateRejected}, fmt.Errorf("%w: %q", ErrToolDisabled, call.Name)
	}

	if def.RequiredRole != "" && !slices.Contains(caller.Roles, def.RequiredRole) {
		g.logger.Warn("tool permission denied",
			"tool", call.Name, "user", caller.User, "required_role", def.RequiredRole)
		return Result{State: StateRejected}, fmt.Errorf("%w: %q", ErrPermissionDenied, call.Name)
	}

	if def.RequireConfirmation {
		g.logger.Info("tool requires user confirmation", "tool", call.Name, "user", caller.User)
		return Result{
			State:             StateNeedsConfirmation,
			NeedsConfirmation: true,
		}, fmt.Errorf("%w: %q", ErrConfirmationRequired, call.Name)
	}

	args := filterArgs(call.Args, def.Parameters, g.logger)

	payload, execErr := g.execute(ctx, def, args)
	if execErr != nil {
		g.logger.Error("tool execution failed", "tool", call.Name, "error", execErr)
		return Result{
			State:    StateFailed,
			Envelope: models.NewToolResultEnvelope(call.Name, fmt.Sprintf("Error executing function: %v", execErr)),
		}, nil
	}

	if g.audit != nil {
		if err := g.audit.RecordFunctionCall(ctx, caller.User, call.Name, args, payload); err != nil {
			g.logger.Warn("failed to record audit entry for tool call",
				"tool", call.Name, "error", err)
		}
	}

	return Result{
		State:    StateSucceeded,
		Envelope: models.NewToolResultEnvelope(call.Name, payload),
		Payload:  payload,
	}, nil
}

// execute prefers the statically registered native handler; the deprecated
// inline-script path is used only when no native handler exists.
func (g *Gateway) execute(ctx context.Context, def Definition, args map[string]any) (payload any, err error) {
	// A panicking handler must yield Failed, not abort the turn.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in tool handler: %v", r)
		}
	}()

	if handler, ok := g.registry.Handler(def.Name); ok {
		return handler(ctx, args)
	}

	if def.Script != "" {
		if g.legacy == nil {
			return nil, fmt.Errorf("tool %q only has a deprecated script implementation and no script runner is configured", def.Name)
		}
		g.logger.Warn("executing deprecated inline-script tool implementation; migrate to a native handler",
			"tool", def.Name)
		return g.legacy.Run(ctx, def.Script, args)
	}

	return nil, fmt.Errorf("%w: %q", ErrNoImplementation, def.Name)
}

// filterArgs keeps only arguments declared in the parameter schema's
// properties, matching keyword bindings against the declaration.
func filterArgs(args map[string]any, schema *models.ParameterSchema, logger *slog.Logger) map[string]any {
	if schema == nil || schema.Properties == nil {
		return map[string]any{}
	}
	filtered := make(map[string]any, len(args))
	for k, v := range args {
		if _, ok := schema.Properties[k]; !ok {
			logger.Warn("dropping undeclared tool argument", "argument", k)
			continue
		}
		filtered[k] = v
	}
	return filtered
}
