package flows

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexcabrera/easel/internal/model"
)

const (
	pngURI  = "data:image/png;base64,AAAA"
	jpegURI = "data:image/jpeg;base64,/9j/"
)

// fakeGenerator records requests and answers with a canned response.
type fakeGenerator struct {
	mu       sync.Mutex
	requests []model.Request
	resp     *model.Response
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, req model.Request) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func imageResponse(url string) *model.Response {
	return &model.Response{Media: &model.Media{URL: url, ContentType: "image/png"}}
}

func newTestExecutor(t *testing.T, gen *fakeGenerator) *Executor {
	t.Helper()
	reg, err := NewDefaultRegistry(Models{Image: "googleai/image-test", Chat: "googleai/chat-test"})
	require.NoError(t, err)
	return NewExecutor(reg, gen)
}
