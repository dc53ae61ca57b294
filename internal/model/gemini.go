package model

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/alexcabrera/easel/internal/datauri"
)

// GeminiBackend is the prefix image refs use, matching the googleai plugin
// naming the editor's model refs were written against.
const GeminiBackend = "googleai"

// contentGenerator is the slice of the genai Models service we use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates images (and text) through the Gemini API.
type Gemini struct {
	models contentGenerator
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string
}

// NewGemini creates a Gemini backend. The key may be empty, in which case
// genai falls back to GOOGLE_API_KEY / GEMINI_API_KEY.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{models: client.Models}, nil
}

// Generate sends the prompt and reference images as one user turn. Image
// output is requested only when req.WantImage is set.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	var parts []*genai.Part
	for i, img := range req.Images {
		u, err := datauri.Parse(img)
		if err != nil {
			return nil, fmt.Errorf("reference image %d: %w", i, err)
		}
		parts = append(parts, genai.NewPartFromBytes(u.Data, u.ContentType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	var contents []*genai.Content
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	modalities := []string{string(genai.ModalityText)}
	if req.WantImage {
		modalities = append(modalities, string(genai.ModalityImage))
	}
	config := &genai.GenerateContentConfig{ResponseModalities: modalities}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	return geminiResponse(resp), nil
}

// geminiResponse takes the first inline image and all text of the first
// candidate.
func geminiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && out.Media == nil {
			out.Media = &Media{
				URL:         datauri.Encode(part.InlineData.MIMEType, part.InlineData.Data),
				ContentType: part.InlineData.MIMEType,
			}
			continue
		}
		text.WriteString(part.Text)
	}
	out.Text = strings.TrimSpace(text.String())

	return out
}
