package models

import "context"

// Provider abstracts a generative-language backend.
type Provider interface {
	// Generate issues a model call and returns the interpreted response.
	// Safety-blocked responses surface as a *ProviderError with
	// ErrorCodeContentBlocked rather than a partial response.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
