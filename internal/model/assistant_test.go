package model_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"charm.land/fantasy"
	"github.com/charmbracelet/catwalk/pkg/catwalk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexcabrera/easel/internal/flows"
	"github.com/alexcabrera/easel/internal/model"
)

// fakeProvider hands out a single language model and records which model
// IDs were requested.
type fakeProvider struct {
	mu     sync.Mutex
	models []string
	lm     *fakeLanguageModel
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) LanguageModel(_ context.Context, modelID string) (fantasy.LanguageModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = append(p.models, modelID)
	return p.lm, nil
}

type fakeLanguageModel struct {
	mu    sync.Mutex
	calls []fantasy.Call
	reply string
	err   error
}

func (m *fakeLanguageModel) Generate(_ context.Context, call fantasy.Call) (*fantasy.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if m.err != nil {
		return nil, m.err
	}
	return &fantasy.Response{
		Content:      []fantasy.Content{fantasy.TextContent{Text: m.reply}},
		FinishReason: fantasy.FinishReasonStop,
	}, nil
}

func (m *fakeLanguageModel) Stream(context.Context, fantasy.Call) (fantasy.StreamResponse, error) {
	return nil, errors.New("stream not supported")
}

func (m *fakeLanguageModel) GenerateObject(context.Context, fantasy.ObjectCall) (*fantasy.ObjectResponse, error) {
	return nil, errors.New("objects not supported")
}

func (m *fakeLanguageModel) StreamObject(context.Context, fantasy.ObjectCall) (fantasy.ObjectStreamResponse, error) {
	return nil, errors.New("objects not supported")
}

func (m *fakeLanguageModel) Provider() string { return "fake" }
func (m *fakeLanguageModel) Model() string    { return "fake-model" }

func newFakeAssistant(reply string) (*model.Assistant, *fakeProvider) {
	p := &fakeProvider{lm: &fakeLanguageModel{reply: reply}}
	return model.NewAssistantWithProvider(p), p
}

func TestAssistantGenerate(t *testing.T) {
	assistant, p := newFakeAssistant("  Try a warmer palette.\n")

	resp, err := assistant.Generate(context.Background(), model.Request{
		Model:  "gpt-test",
		System: "be brief",
		Prompt: "what next?",
		Images: []string{"data:image/png;base64,AAAA"},
		History: []model.Turn{
			{Role: model.RoleUser, Text: "hello"},
			{Role: model.RoleAssistant, Text: "hi there"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Try a warmer palette.", resp.Text)
	assert.Nil(t, resp.Media)
	assert.Equal(t, []string{"gpt-test"}, p.models)

	require.Len(t, p.lm.calls, 1)
	prompt := p.lm.calls[0].Prompt
	require.Len(t, prompt, 4)

	assert.Equal(t, fantasy.MessageRoleSystem, prompt[0].Role)
	assert.Equal(t, []fantasy.MessagePart{fantasy.TextPart{Text: "be brief"}}, prompt[0].Content)

	assert.Equal(t, fantasy.MessageRoleUser, prompt[1].Role)
	assert.Equal(t, []fantasy.MessagePart{fantasy.TextPart{Text: "hello"}}, prompt[1].Content)
	assert.Equal(t, fantasy.MessageRoleAssistant, prompt[2].Role)
	assert.Equal(t, []fantasy.MessagePart{fantasy.TextPart{Text: "hi there"}}, prompt[2].Content)

	last := prompt[3]
	assert.Equal(t, fantasy.MessageRoleUser, last.Role)
	require.Len(t, last.Content, 2)
	assert.Equal(t, fantasy.TextPart{Text: "what next?"}, last.Content[0])

	file, ok := fantasy.AsMessagePart[fantasy.FilePart](last.Content[1])
	require.True(t, ok)
	assert.Equal(t, "image/png", file.MediaType)
	assert.Equal(t, []byte{0, 0, 0}, file.Data)
}

func TestAssistantGenerateRejectsBadImage(t *testing.T) {
	assistant, p := newFakeAssistant("ok")

	_, err := assistant.Generate(context.Background(), model.Request{
		Model:  "gpt-test",
		Prompt: "hi",
		Images: []string{"https://cdn.example.com/a.png"},
	})
	require.Error(t, err)
	assert.Empty(t, p.lm.calls)
}

func TestAssistantGenerateError(t *testing.T) {
	assistant, p := newFakeAssistant("")
	cause := errors.New("rate limited")
	p.lm.err = cause

	_, err := assistant.Generate(context.Background(), model.Request{Model: "gpt-test", Prompt: "hi"})
	assert.ErrorIs(t, err, cause)
}

func newAssistantExecutor(t *testing.T, assistant *model.Assistant) *flows.Executor {
	t.Helper()
	reg, err := flows.NewDefaultRegistry(flows.Models{Image: "googleai/image-test", Chat: "fake/chat-test"})
	require.NoError(t, err)

	router := model.NewRouter()
	router.Handle("fake", assistant)
	return flows.NewExecutor(reg, router)
}

func TestAssistantChatFlow(t *testing.T) {
	assistant, p := newFakeAssistant("Add a sunset.")
	exec := newAssistantExecutor(t, assistant)

	out, err := exec.Execute(context.Background(), flows.ChatFlow, flows.ChatInput{
		Message: "ideas?",
		History: []flows.ChatTurn{{Role: flows.RoleUser, Text: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &flows.Output{Reply: "Add a sunset."}, out)
	assert.Equal(t, []string{"chat-test"}, p.models)

	prompt := p.lm.calls[0].Prompt
	require.Len(t, prompt, 3)
	assert.Equal(t, fantasy.MessageRoleSystem, prompt[0].Role)
	assert.Equal(t, []fantasy.MessagePart{fantasy.TextPart{Text: "hello"}}, prompt[1].Content)
	assert.Equal(t, []fantasy.MessagePart{fantasy.TextPart{Text: "ideas?"}}, prompt[2].Content)
}

func TestAssistantChatFlowEmptyReply(t *testing.T) {
	for _, reply := range []string{"", "  \n\t"} {
		assistant, _ := newFakeAssistant(reply)
		exec := newAssistantExecutor(t, assistant)

		out, err := exec.Execute(context.Background(), flows.ChatFlow, flows.ChatInput{Message: "ideas?"})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, flows.ErrEmptyGenerationResult, "reply %q", reply)
		assert.True(t, flows.KindOf(err).Retryable())
	}
}

func TestNewFantasyProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider catwalk.Provider
		want     string
	}{
		{"openai", catwalk.Provider{Type: catwalk.TypeOpenAI, APIKey: "k"}, "openai"},
		{"compat", catwalk.Provider{Type: catwalk.TypeOpenAICompat, APIKey: "k", APIEndpoint: "http://localhost:1234/v1"}, "openai-compat"},
		{"anthropic", catwalk.Provider{Type: catwalk.TypeAnthropic, APIKey: "k"}, "anthropic"},
		{"google", catwalk.Provider{Type: catwalk.TypeGoogle, APIKey: "k"}, "google"},
		{"openrouter", catwalk.Provider{Type: catwalk.TypeOpenRouter, APIKey: "k"}, "openrouter"},
		{"unknown with endpoint", catwalk.Provider{Type: "custom", APIKey: "k", APIEndpoint: "http://localhost:1234/v1"}, "openai-compat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := model.NewFantasyProvider(tt.provider)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	_, err := model.NewFantasyProvider(catwalk.Provider{Type: "custom"})
	assert.ErrorContains(t, err, "unsupported provider type")
}
