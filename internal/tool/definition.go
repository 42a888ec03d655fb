// Package tool implements the tool registry and the invocation gateway that
// validates, gates, and executes model-requested tool calls.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tessara/gemini-assistant/internal/provider/models"
)

// Handler is a natively registered tool implementation. Arguments arrive as
// the flat key->value map extracted from the model's call, already filtered
// against the declared parameter schema.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition describes one tool the model may request.
type Definition struct {
	// Name is the unique registry key.
	Name        string
	Description string

	// Parameters must declare type "object" with a properties map. A tool
	// without arguments declares an empty properties map.
	Parameters *models.ParameterSchema

	Enabled bool

	// RequiredRole, when set, must be held by the caller.
	RequiredRole string

	// RequireConfirmation gates execution behind an explicit user
	// confirmation surfaced by the caller.
	RequireConfirmation bool

	// Script holds a deprecated inline implementation, executed by the
	// sandboxed legacy runner only when no native handler is registered.
	Script string
}

// Validate checks that the parameter spec is a usable object schema.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if d.Parameters == nil {
		return fmt.Errorf("tool %q: missing parameter schema", d.Name)
	}
	if d.Parameters.Type != "object" {
		return fmt.Errorf("tool %q: parameter schema must declare type \"object\", got %q", d.Name, d.Parameters.Type)
	}
	if d.Parameters.Properties == nil {
		return fmt.Errorf("tool %q: parameter schema must declare a properties map", d.Name)
	}
	return nil
}

// Registry is the closed, statically built mapping of tool name to
// definition and native handler.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]Definition),
		handlers: make(map[string]Handler),
	}
}

// Register adds a definition with its native handler. The definition must
// validate; handler may be nil for script-only legacy definitions.
func (r *Registry) Register(def Definition, handler Handler) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if handler == nil && def.Script == "" {
		return fmt.Errorf("tool %q has no implementation", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	if handler != nil {
		r.handlers[def.Name] = handler
	}
	return nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Handler returns the native handler for name, if one is registered.
func (r *Registry) Handler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// EnabledDeclarations returns provider declarations for all enabled tools,
// sorted by name for deterministic request payloads.
func (r *Registry) EnabledDeclarations() []models.ToolDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]models.ToolDeclaration, 0, len(r.defs))
	for _, def := range r.defs {
		if !def.Enabled {
			continue
		}
		decls = append(decls, models.ToolDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	sort.Slice(decls, func(i, j int) bool {
		return decls[i].Name < decls[j].Name
	})
	return decls
}
