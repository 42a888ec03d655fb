package gemini

import (
	"fmt"
	"strings"

	"github.com/tessara/gemini-assistant/internal/provider/models"
	"google.golang.org/genai"
)

// toGeminiContents converts assembled parts and history to Gemini Content
// format. History messages come first as role-tagged contents, followed by
// exactly one user content built from the new parts. Callers never send
// overlapping history and prompt content.
func toGeminiContents(parts []models.Part, history []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)

	for _, msg := range history {
		content := messageToGeminiContent(msg)
		if content != nil {
			contents = append(contents, content)
		}
	}

	current := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		current = append(current, partToGeminiPart(p))
	}
	if len(current) > 0 {
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: current,
		})
	}

	return contents
}

func partToGeminiPart(p models.Part) *genai.Part {
	if p.FileURI != "" {
		return genai.NewPartFromURI(p.FileURI, p.MIMEType)
	}
	return genai.NewPartFromText(p.Text)
}

// messageToGeminiContent converts a single history message to Gemini
// Content format. Tool calls and results never travel through history; the
// follow-up after a tool execution is issued as a plain text prompt.
func messageToGeminiContent(msg models.Message) *genai.Content {
	// Skip empty messages
	if msg.Content == "" {
		return nil
	}

	role := "user"
	if msg.Role == "assistant" || msg.Role == "model" {
		role = "model"
	}

	return &genai.Content{
		Role:  role,
		Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
	}
}

// toGeminiConfig converts generation parameters, safety settings and tool
// declarations to a Gemini request config.
func toGeminiConfig(config *models.GenerateConfig, safety []models.SafetySetting, tools []models.ToolDeclaration) *genai.GenerateContentConfig {
	geminiConfig := &genai.GenerateContentConfig{
		SafetySettings: toGeminiSafetySettings(safety),
	}

	if config != nil {
		geminiConfig.MaxOutputTokens = config.MaxOutputTokens
		if config.Temperature != nil {
			geminiConfig.Temperature = config.Temperature
		}
		if config.TopP != nil {
			geminiConfig.TopP = config.TopP
		}
		if config.TopK != nil {
			topK := float32(*config.TopK)
			geminiConfig.TopK = &topK
		}
	}

	if len(tools) > 0 {
		geminiConfig.Tools = toGeminiTools(tools)
	}

	return geminiConfig
}

// toGeminiSafetySettings maps category/threshold strings to SDK values.
// Nil input means "use provider defaults" and yields no explicit override.
func toGeminiSafetySettings(settings []models.SafetySetting) []*genai.SafetySetting {
	if len(settings) == 0 {
		return nil
	}

	out := make([]*genai.SafetySetting, 0, len(settings))
	for _, s := range settings {
		category := strings.ToUpper(strings.TrimSpace(s.Category))
		if !strings.HasPrefix(category, "HARM_CATEGORY_") {
			category = "HARM_CATEGORY_" + category
		}
		threshold := strings.ToUpper(strings.TrimSpace(s.Threshold))
		if threshold != "OFF" && !strings.HasPrefix(threshold, "BLOCK_") {
			threshold = "BLOCK_" + threshold
		}
		out = append(out, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(threshold),
		})
	}
	return out
}

// toGeminiTools converts tool declarations to Gemini tools.
func toGeminiTools(tools []models.ToolDeclaration) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	functionDeclarations := make([]*genai.FunctionDeclaration, 0, len(tools))

	for _, tool := range tools {
		fd := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}

		if tool.Parameters != nil {
			fd.Parameters = toGeminiSchema(tool.Parameters)
		}

		functionDeclarations = append(functionDeclarations, fd)
	}

	return []*genai.Tool{
		{FunctionDeclarations: functionDeclarations},
	}
}

// toGeminiSchema converts ParameterSchema to Gemini Schema.
func toGeminiSchema(params *models.ParameterSchema) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	if params.Properties != nil {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range params.Properties {
			schema.Properties[name] = &genai.Schema{
				Type:        toGeminiType(prop.Type),
				Description: prop.Description,
			}

			if len(prop.Enum) > 0 {
				schema.Properties[name].Enum = prop.Enum
			}

			if prop.Items != nil {
				schema.Properties[name].Items = &genai.Schema{
					Type:        toGeminiType(prop.Items.Type),
					Description: prop.Items.Description,
				}
			}
		}
	}

	if len(params.Required) > 0 {
		schema.Required = params.Required
	}

	return schema
}

// toGeminiType converts string type to Gemini Type.
func toGeminiType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// interpretResponse converts a raw Gemini response to the internal format.
// Safety blocks short-circuit before any text or tool-call extraction.
func interpretResponse(resp *genai.GenerateContentResponse, modelUsed string) (*models.GenerateResponse, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &models.ProviderError{
			Code:        models.ErrorCodeContentBlocked,
			Message:     fmt.Sprintf("content blocked by safety settings: %s", resp.PromptFeedback.BlockReason),
			Retryable:   false,
			BlockReason: string(resp.PromptFeedback.BlockReason),
		}
	}

	if len(resp.Candidates) == 0 {
		return nil, &models.ProviderError{
			Code:    models.ErrorCodeInvalidRequest,
			Message: "no candidates in response",
		}
	}

	candidate := resp.Candidates[0]

	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, &models.ProviderError{
			Code:        models.ErrorCodeContentBlocked,
			Message:     "content blocked by safety filters",
			Retryable:   false,
			BlockReason: string(genai.FinishReasonSafety),
		}
	}

	var text string
	var toolCall *models.ToolCall

	if candidate.Content != nil {
		// Text extraction tolerates tool-call-only responses by
		// concatenating whatever text-bearing parts exist.
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}

		// First function call wins; further calls are ignored.
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				toolCall = &models.ToolCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}
				break
			}
		}
	}

	if toolCall != nil && text == "" {
		text = fmt.Sprintf("Attempting to execute function: %s", toolCall.Name)
	}

	return &models.GenerateResponse{
		Text:      text,
		ToolCall:  toolCall,
		Citations: []string{},
		Metadata:  buildMetadata(resp.UsageMetadata, modelUsed),
	}, nil
}

// buildMetadata builds response metadata from usage data.
func buildMetadata(usage *genai.GenerateContentResponseUsageMetadata, modelUsed string) models.ResponseMetadata {
	metadata := models.ResponseMetadata{
		ModelUsed: modelUsed,
	}

	if usage != nil {
		metadata.PromptTokens = int(usage.PromptTokenCount)
		metadata.CompletionTokens = int(usage.CandidatesTokenCount)
		metadata.TotalTokens = int(usage.TotalTokenCount)
	}

	return metadata
}

// mapGeminiError maps Gemini API errors to provider errors. Resource
// exhaustion and 5xx responses are marked retryable; everything else
// propagates as terminal.
func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(*genai.APIError); ok {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return &models.ProviderError{
				Code:       models.ErrorCodeAuth,
				Message:    "authentication failed",
				Underlying: err,
				Retryable:  false,
			}
		case apiErr.Code == 429 || strings.Contains(apiErr.Status, "RESOURCE_EXHAUSTED"):
			return &models.ProviderError{
				Code:       models.ErrorCodeRateLimit,
				Message:    "provider resources exhausted",
				Underlying: err,
				Retryable:  true,
			}
		case apiErr.Code == 400:
			return &models.ProviderError{
				Code:       models.ErrorCodeInvalidRequest,
				Message:    fmt.Sprintf("invalid request: %s", apiErr.Message),
				Underlying: err,
				Retryable:  false,
			}
		case apiErr.Code >= 500:
			return &models.ProviderError{
				Code:       models.ErrorCodeUnavailable,
				Message:    "service unavailable",
				Underlying: err,
				Retryable:  true,
			}
		default:
			return &models.ProviderError{
				Code:       models.ErrorCodeNetwork,
				Message:    fmt.Sprintf("API error: %s", apiErr.Message),
				Underlying: err,
				Retryable:  false,
			}
		}
	}

	// RESOURCE_EXHAUSTED can also surface in wrapped transport errors.
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return &models.ProviderError{
			Code:       models.ErrorCodeRateLimit,
			Message:    "provider resources exhausted",
			Underlying: err,
			Retryable:  true,
		}
	}

	return &models.ProviderError{
		Code:       models.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  false,
	}
}
