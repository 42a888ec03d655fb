package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/tessara/gemini-assistant/internal/provider/models"
)

// MockGeminiClient implements GeminiClient for testing.
type MockGeminiClient struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	UploadFileFunc      func(ctx context.Context, path, mimeType string) (string, string, error)
}

func (m *MockGeminiClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return nil, errors.New("not implemented")
}

func (m *MockGeminiClient) UploadFile(ctx context.Context, path, mimeType string) (string, string, error) {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, path, mimeType)
	}
	return "", "", errors.New("not implemented")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestGenerate_TextResponse(t *testing.T) {
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		assert.Equal(t, "gemini-1.5-pro", model)
		return textResponse("hello there"), nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	resp, err := p.Generate(context.Background(), &models.GenerateRequest{
		Parts: []models.Part{{Text: "hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Nil(t, resp.ToolCall)
	assert.NotNil(t, resp.Citations)
}

func TestGenerate_RequestModelOverridesConfigured(t *testing.T) {
	var seen string
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		seen = model
		return textResponse("ok"), nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	_, err := p.Generate(context.Background(), &models.GenerateRequest{
		Model: "gemini-1.5-flash",
		Parts: []models.Part{{Text: "hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", seen)
}

func TestGenerate_PromptBlocked_ShortCircuits(t *testing.T) {
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
				BlockReason: "SAFETY",
			},
			Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "should never surface"}}}},
			},
		}, nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	_, err := p.Generate(context.Background(), &models.GenerateRequest{
		Parts: []models.Part{{Text: "hi"}},
	})

	require.Error(t, err)
	assert.True(t, models.IsBlocked(err))
	var pe *models.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "SAFETY", pe.BlockReason)
}

func TestGenerate_SafetyFinishReason_Blocked(t *testing.T) {
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}, nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	_, err := p.Generate(context.Background(), &models.GenerateRequest{
		Parts: []models.Part{{Text: "hi"}},
	})

	assert.True(t, models.IsBlocked(err))
}

func TestGenerate_FirstFunctionCallWins(t *testing.T) {
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{Name: "check_stock_levels", Args: map[string]any{"item_code": "W-100"}}},
					{FunctionCall: &genai.FunctionCall{Name: "generate_sales_report"}},
				}},
			}},
		}, nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	resp, err := p.Generate(context.Background(), &models.GenerateRequest{
		Parts: []models.Part{{Text: "stock?"}},
	})

	require.NoError(t, err)
	require.NotNil(t, resp.ToolCall)
	assert.Equal(t, "check_stock_levels", resp.ToolCall.Name)
	assert.Equal(t, "W-100", resp.ToolCall.Args["item_code"])
}

func TestGenerate_ToolCallWithoutText_GetsPlaceholder(t *testing.T) {
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{Name: "check_stock_levels"}},
				}},
			}},
		}, nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	resp, err := p.Generate(context.Background(), &models.GenerateRequest{
		Parts: []models.Part{{Text: "stock?"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Attempting to execute function: check_stock_levels", resp.Text)
}

func TestGenerate_MultipleTextParts_Concatenated(t *testing.T) {
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "part one "}, {Text: "part two"},
				}},
			}},
		}, nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	resp, err := p.Generate(context.Background(), &models.GenerateRequest{
		Parts: []models.Part{{Text: "hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Text)
}

func TestGenerate_NoCandidates_InvalidRequest(t *testing.T) {
	client := &MockGeminiClient{GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	}}
	p := New(client, "gemini-1.5-pro", nil)

	_, err := p.Generate(context.Background(), &models.GenerateRequest{
		Parts: []models.Part{{Text: "hi"}},
	})

	var pe *models.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, models.ErrorCodeInvalidRequest, pe.Code)
}

// --- error mapping ---

func TestMapGeminiError_HTTPCodes(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  models.ErrorCode
		retryable bool
	}{
		{"unauthorized", &genai.APIError{Code: 401}, models.ErrorCodeAuth, false},
		{"forbidden", &genai.APIError{Code: 403}, models.ErrorCodeAuth, false},
		{"too many requests", &genai.APIError{Code: 429}, models.ErrorCodeRateLimit, true},
		{"status exhausted", &genai.APIError{Code: 503, Status: "RESOURCE_EXHAUSTED"}, models.ErrorCodeRateLimit, true},
		{"bad request", &genai.APIError{Code: 400, Message: "bad field"}, models.ErrorCodeInvalidRequest, false},
		{"server error", &genai.APIError{Code: 500}, models.ErrorCodeUnavailable, true},
		{"wrapped exhaustion", errors.New("rpc error: RESOURCE_EXHAUSTED"), models.ErrorCodeRateLimit, true},
		{"generic", errors.New("connection reset"), models.ErrorCodeNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapGeminiError(tt.err)
			var pe *models.ProviderError
			require.True(t, errors.As(mapped, &pe))
			assert.Equal(t, tt.wantCode, pe.Code)
			assert.Equal(t, tt.retryable, pe.Retryable)
		})
	}
}

func TestSetModel_ChangesActiveModel(t *testing.T) {
	p := New(&MockGeminiClient{}, "gemini-1.5-pro", nil)

	p.SetModel("gemini-2.0-flash")

	assert.Equal(t, "gemini-2.0-flash", p.GetModel())
}
