package model

import (
	"context"
	"errors"
	"testing"

	"charm.land/fantasy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestSplitRef(t *testing.T) {
	backend, name, err := SplitRef("googleai/gemini-2.0-flash-preview-image-generation")
	require.NoError(t, err)
	assert.Equal(t, "googleai", backend)
	assert.Equal(t, "gemini-2.0-flash-preview-image-generation", name)

	for _, bad := range []string{"", "gemini", "/gemini", "googleai/"} {
		_, _, err := SplitRef(bad)
		assert.ErrorIs(t, err, ErrInvalidModel, bad)
	}
}

func TestRouter(t *testing.T) {
	var got Request
	r := NewRouter()
	r.Handle("googleai", GeneratorFunc(func(ctx context.Context, req Request) (*Response, error) {
		got = req
		return &Response{Text: "ok"}, nil
	}))

	resp, err := r.Generate(context.Background(), Request{Model: "googleai/gemini-x", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "gemini-x", got.Model)
	assert.Equal(t, "p", got.Prompt)

	_, err = r.Generate(context.Background(), Request{Model: "openai/gpt-4.1"})
	assert.ErrorIs(t, err, ErrNoBackend)

	assert.Equal(t, []string{"googleai"}, r.Backends())
}

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func TestGeminiGenerate(t *testing.T) {
	fake := &fakeModels{
		resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "thinking", Thought: true},
					{Text: "Here is your image."},
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{0, 0, 0}}},
				}},
			}},
		},
	}
	g := &Gemini{models: fake}

	resp, err := g.Generate(context.Background(), Request{
		Model:     "gemini-x",
		Prompt:    "make it blue",
		Images:    []string{"data:image/jpeg;base64,AAAA"},
		WantImage: true,
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Media)
	assert.Equal(t, "data:image/png;base64,AAAA", resp.Media.URL)
	assert.Equal(t, "Here is your image.", resp.Text)

	assert.Equal(t, "gemini-x", fake.model)
	require.Len(t, fake.contents, 1)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, "make it blue", parts[1].Text)
	assert.Equal(t, []string{"TEXT", "IMAGE"}, fake.config.ResponseModalities)
}

func TestGeminiGenerateTextOnly(t *testing.T) {
	fake := &fakeModels{
		resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: "Try warmer tones."}}},
			}},
		},
	}
	g := &Gemini{models: fake}

	resp, err := g.Generate(context.Background(), Request{
		Model:   "gemini-2.5-flash",
		System:  "sys",
		Prompt:  "hi",
		History: []Turn{{Role: RoleUser, Text: "hello"}, {Role: RoleAssistant, Text: "hey"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Try warmer tones.", resp.Text)

	assert.Equal(t, []string{"TEXT"}, fake.config.ResponseModalities)
	require.NotNil(t, fake.config.SystemInstruction)
	require.Len(t, fake.contents, 3)
	assert.Equal(t, genai.RoleModel, fake.contents[1].Role)
}

func TestGeminiGenerateNoImage(t *testing.T) {
	g := &Gemini{models: &fakeModels{resp: &genai.GenerateContentResponse{}}}

	resp, err := g.Generate(context.Background(), Request{Model: "gemini-x", Prompt: "p"})
	require.NoError(t, err)
	assert.Nil(t, resp.Media)
}

func TestGeminiGenerateError(t *testing.T) {
	boom := errors.New("503 unavailable")
	g := &Gemini{models: &fakeModels{err: boom}}

	_, err := g.Generate(context.Background(), Request{Model: "gemini-x", Prompt: "p"})
	assert.ErrorIs(t, err, boom)
}

func TestGeminiGenerateBadReference(t *testing.T) {
	fake := &fakeModels{}
	g := &Gemini{models: fake}

	_, err := g.Generate(context.Background(), Request{Model: "gemini-x", Images: []string{"nope"}})
	require.Error(t, err)
	assert.Empty(t, fake.model, "model must not be called")
}

func TestHistoryMessages(t *testing.T) {
	msgs := historyMessages([]Turn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleAssistant, Text: "hello"},
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, fantasy.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, fantasy.MessageRoleAssistant, msgs[1].Role)
}
