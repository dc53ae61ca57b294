package model

import (
	"context"
	"fmt"
	"os"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/google"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openaicompat"
	"charm.land/fantasy/providers/openrouter"
	"github.com/charmbracelet/catwalk/pkg/catwalk"

	"github.com/alexcabrera/easel/internal/datauri"
)

// Assistant answers chat turns through a fantasy language model.
type Assistant struct {
	provider fantasy.Provider
}

// NewAssistant creates a chat backend from a Catwalk provider description.
func NewAssistant(p catwalk.Provider) (*Assistant, error) {
	provider, err := NewFantasyProvider(p)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return NewAssistantWithProvider(provider), nil
}

// NewAssistantWithProvider wraps an already configured fantasy provider.
func NewAssistantWithProvider(p fantasy.Provider) *Assistant {
	return &Assistant{provider: p}
}

// Generate runs one non-streaming completion. Reference images are attached
// to the prompt as file parts.
func (a *Assistant) Generate(ctx context.Context, req Request) (*Response, error) {
	lm, err := a.provider.LanguageModel(ctx, req.Model)
	if err != nil {
		return nil, fmt.Errorf("language model %s: %w", req.Model, err)
	}

	files, err := fileParts(req.Images)
	if err != nil {
		return nil, err
	}

	agent := fantasy.NewAgent(lm, fantasy.WithSystemPrompt(req.System))
	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt:   req.Prompt,
		Files:    files,
		Messages: historyMessages(req.History),
	})
	if err != nil {
		return nil, fmt.Errorf("assistant generate: %w", err)
	}

	return &Response{Text: strings.TrimSpace(result.Response.Content.Text())}, nil
}

// historyMessages converts prior turns into fantasy messages.
func historyMessages(history []Turn) []fantasy.Message {
	var msgs []fantasy.Message
	for _, turn := range history {
		switch turn.Role {
		case RoleAssistant:
			msgs = append(msgs, fantasy.Message{
				Role:    fantasy.MessageRoleAssistant,
				Content: []fantasy.MessagePart{fantasy.TextPart{Text: turn.Text}},
			})
		default:
			msgs = append(msgs, fantasy.NewUserMessage(turn.Text))
		}
	}
	return msgs
}

func fileParts(images []string) ([]fantasy.FilePart, error) {
	var parts []fantasy.FilePart
	for i, img := range images {
		u, err := datauri.Parse(img)
		if err != nil {
			return nil, fmt.Errorf("reference image %d: %w", i, err)
		}
		parts = append(parts, fantasy.FilePart{
			Filename:  fmt.Sprintf("image-%d", i+1),
			Data:      u.Data,
			MediaType: u.ContentType,
		})
	}
	return parts, nil
}

// NewFantasyProvider creates a Fantasy provider from Catwalk configuration.
func NewFantasyProvider(p catwalk.Provider) (fantasy.Provider, error) {
	apiKey := providerAPIKey(p)

	switch p.Type {
	case catwalk.TypeOpenAI:
		opts := []openai.Option{openai.WithAPIKey(apiKey)}
		if p.APIEndpoint != "" {
			opts = append(opts, openai.WithBaseURL(p.APIEndpoint))
		}
		if len(p.DefaultHeaders) > 0 {
			opts = append(opts, openai.WithHeaders(p.DefaultHeaders))
		}
		return openai.New(opts...)

	case catwalk.TypeOpenAICompat:
		opts := []openaicompat.Option{openaicompat.WithAPIKey(apiKey)}
		if p.APIEndpoint != "" {
			opts = append(opts, openaicompat.WithBaseURL(p.APIEndpoint))
		}
		if len(p.DefaultHeaders) > 0 {
			opts = append(opts, openaicompat.WithHeaders(p.DefaultHeaders))
		}
		return openaicompat.New(opts...)

	case catwalk.TypeAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(apiKey)}
		if p.APIEndpoint != "" {
			opts = append(opts, anthropic.WithBaseURL(p.APIEndpoint))
		}
		return anthropic.New(opts...)

	case catwalk.TypeGoogle:
		return google.New(google.WithGeminiAPIKey(apiKey))

	case catwalk.TypeOpenRouter:
		return openrouter.New(openrouter.WithAPIKey(apiKey))

	default:
		if p.APIEndpoint != "" {
			return openaicompat.New(
				openaicompat.WithAPIKey(apiKey),
				openaicompat.WithBaseURL(p.APIEndpoint),
			)
		}
		return nil, fmt.Errorf("unsupported provider type: %s", p.Type)
	}
}

// providerAPIKey retrieves the API key from config or environment.
func providerAPIKey(p catwalk.Provider) string {
	if p.APIKey != "" {
		return p.APIKey
	}
	return os.Getenv(strings.ToUpper(string(p.ID)) + "_API_KEY")
}
