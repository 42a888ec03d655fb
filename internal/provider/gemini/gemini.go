package gemini

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tessara/gemini-assistant/internal/provider/models"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client GeminiClient
	logger *slog.Logger

	mu        sync.RWMutex
	modelName string
}

// New creates a new GeminiProvider with the specified client and model.
func New(client GeminiClient, modelName string, logger *slog.Logger) *GeminiProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiProvider{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}
}

// Generate sends a request to the Gemini API and returns the interpreted
// response. Exactly one request shape is used per call: multi-turn when
// history is present, single-turn otherwise.
func (p *GeminiProvider) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	p.mu.RLock()
	model := p.modelName
	p.mu.RUnlock()
	if req.Model != "" {
		model = req.Model
	}

	contents := toGeminiContents(req.Parts, req.History)
	config := toGeminiConfig(req.Config, req.Safety, req.Tools)

	p.logger.Debug("generating content",
		"model", model,
		"contents", len(contents),
		"tools", len(req.Tools),
		"history", len(req.History))

	resp, err := p.client.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	return interpretResponse(resp, model)
}

// SetModel changes the active model at runtime.
func (p *GeminiProvider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modelName = model
}

// GetModel returns the currently active model name.
func (p *GeminiProvider) GetModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modelName
}
