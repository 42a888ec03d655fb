package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tessara/gemini-assistant/internal/assembler"
	"github.com/tessara/gemini-assistant/internal/config"
)

// AnalyzeRequest asks the model to analyze one document.
type AnalyzeRequest struct {
	User    string
	FileRef assembler.Attachment
	Prompt  string
	Context map[string]any
}

// AnalyzeDocument runs a single-turn analysis over one attachment. No
// conversation is persisted; a single audit entry records the exchange.
func (o *Orchestrator) AnalyzeDocument(ctx context.Context, req AnalyzeRequest) Response {
	resolved, err := o.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, config.ErrAPIKeyMissing) {
			o.logger.Error("assistant not configured", "error", err)
			return Response{Error: true, Message: msgNotConfigured, Citations: []string{}}
		}
		o.logger.Error("settings resolution failed", "error", err)
		return Response{Error: true, Message: msgProviderError, Citations: []string{}}
	}

	prompt := o.sanitizer.Sanitize(req.Prompt)

	parts, err := o.assembler.Assemble(ctx, prompt, []assembler.Attachment{req.FileRef})
	if err != nil {
		o.logger.Error("content assembly failed", "error", err)
		return Response{Error: true, Message: msgProviderError, Citations: []string{}}
	}

	genResp, errResp := o.generate(ctx, resolved, parts, nil)
	if errResp != nil {
		return *errResp
	}

	resp := Response{
		Text:      genResp.Text,
		ToolCall:  genResp.ToolCall,
		Citations: genResp.Citations,
	}

	// No conversation is kept for analyses, so the caller's context blob is
	// preserved on the audit entry instead.
	auditPrompt := fmt.Sprintf("Document analysis: %s", prompt)
	if err := o.audit.RecordQuery(ctx, req.User, auditPrompt, resp.Text, req.Context); err != nil {
		o.logger.Warn("failed to record document analysis audit entry", "error", err)
	}

	return resp
}
