package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/upb/commerce-gateway/services/providers"
)

// Completer is the generative backend seen by the chat service
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest carries everything the backend needs for one turn
type CompletionRequest struct {
	Policy  PromptPolicy
	History []providers.Message
	Message string
	Subject string
}

// ProviderCompleter adapts a providers.Provider to Completer
type ProviderCompleter struct {
	provider    providers.Provider
	model       string
	temperature float64
}

// NewProviderCompleter creates a completer using model on provider
func NewProviderCompleter(provider providers.Provider, model string, temperature float64) *ProviderCompleter {
	return &ProviderCompleter{
		provider:    provider,
		model:       model,
		temperature: temperature,
	}
}

// Complete sends system prompt, history and the user message as one request
func (c *ProviderCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]providers.Message, 0, len(req.History)+2)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: req.Policy.SystemPrompt})
	messages = append(messages, req.History...)
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: req.Message})

	resp, err := c.provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		User:        req.Subject,
		Metadata: map[string]string{
			"role":  req.Policy.Role,
			"tools": strings.Join(req.Policy.AllowedTools, ","),
		},
	})
	if err != nil {
		return "", err
	}
	content, ok := resp.Content()
	if !ok {
		return "", errors.New("completion returned no choices")
	}
	return content, nil
}
