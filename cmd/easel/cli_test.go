package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexcabrera/easel/internal/flows"
)

// 1x1 PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestParseRegion(t *testing.T) {
	r, err := parseRegion("10, 20,30,40")
	require.NoError(t, err)
	assert.Equal(t, flows.Region{X: 10, Y: 20, Width: 30, Height: 40}, r)

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,3,4,5"} {
		_, err := parseRegion(bad)
		assert.Error(t, err, bad)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", &flows.Error{Kind: flows.KindInvalidInput}, exitInvalidInput},
		{"unknown flow", &flows.Error{Kind: flows.KindUnknownFlow}, exitInvalidInput},
		{"model unavailable", &flows.Error{Kind: flows.KindModelUnavailable}, exitFlowFailed},
		{"timeout", &flows.Error{Kind: flows.KindModelUnavailable, Err: context.DeadlineExceeded}, exitTimeout},
		{"reported", fmt.Errorf("%w: %w", errReported, &flows.Error{Kind: flows.KindEmptyGenerationResult}), exitFlowFailed},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestPrintFlowError(t *testing.T) {
	var buf bytes.Buffer
	err := printFlowError(&buf, &flows.Error{
		Kind:   flows.KindInvalidInput,
		Flow:   flows.BackgroundFillFlow,
		Fields: []flows.FieldError{{Path: "prompt", Reason: "must not be empty"}},
	})
	assert.ErrorIs(t, err, errReported)
	assert.ErrorIs(t, err, flows.ErrInvalidInput)
	assert.Contains(t, buf.String(), "InvalidInput")
	assert.Contains(t, buf.String(), "prompt")
	assert.Contains(t, buf.String(), "must not be empty")
	assert.NotContains(t, buf.String(), "retried")

	buf.Reset()
	plain := errors.New("boom")
	assert.Same(t, plain, printFlowError(&buf, plain))
	assert.Empty(t, buf.String())
}

func TestFlowInputRead(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(a, pngBytes, 0o644))
	require.NoError(t, os.WriteFile(b, pngBytes, 0o644))

	in := flowInput{files: []string{"sourceImages=" + a, "sourceImages=" + b, "referenceImage=" + a}}
	got, err := in.read([]string{`{"prompt": "noir"}`})
	require.NoError(t, err)

	assert.Equal(t, "noir", got["prompt"])
	require.Len(t, got["sourceImages"], 2)
	assert.Contains(t, got["referenceImage"], "data:image/png;base64,")

	_, err = (&flowInput{}).read([]string{`[1, 2]`})
	assert.Error(t, err)

	_, err = (&flowInput{files: []string{"noequals"}}).read([]string{`{}`})
	assert.Error(t, err)
}

func TestFlowInputFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"message": "hi"}`), 0o644))

	got, err := (&flowInput{inputFile: path}).read(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": "hi"}, got)
}

func TestWriteImage(t *testing.T) {
	uri, err := readImage(writeTemp(t, pngBytes))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, writeImage(out, uri))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	assert.Error(t, writeImage(out, "not a data uri"))
}

func TestOutputHistoryTable(t *testing.T) {
	runs := []*flows.Run{
		{ID: "01JABCDEFGHJKMNPQRSTVWXYZ0", FlowName: flows.VariationFlow, Status: flows.RunStatusSuccess, StartedAt: time.Now(), DurationMs: 1500},
		{ID: "01JABCDEFGHJKMNPQRSTVWXYZ1", FlowName: flows.ChatFlow, Status: flows.RunStatusFailed, StartedAt: time.Now()},
	}
	var buf bytes.Buffer
	require.NoError(t, outputHistoryTable(&buf, runs))
	assert.Contains(t, buf.String(), "01JABCDEFG")
	assert.Contains(t, buf.String(), flows.VariationFlow)
	assert.Contains(t, buf.String(), "1.5s")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "1.5m", formatDuration(90*time.Second))
}

func TestDescribeFlow(t *testing.T) {
	registry, err := flows.NewDefaultRegistry(flows.Models{})
	require.NoError(t, err)
	f, err := registry.Resolve(flows.SelectionEnhanceFlow)
	require.NoError(t, err)

	d, err := describeFlow(f, true)
	require.NoError(t, err)
	assert.Equal(t, flows.ProducesImage, d.Produces)
	assert.Contains(t, string(d.Input), "selectionMask")
	assert.Contains(t, string(d.Output), "image")

	var buf bytes.Buffer
	require.NoError(t, outputFlowsTable(&buf, registry.Flows()))
	for _, name := range registry.Names() {
		assert.Contains(t, buf.String(), name)
	}
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadAPIKey(t *testing.T) {
	ctx := context.Background()
	stdin := func() ([]byte, error) { return []byte("piped-key\n"), nil }
	var prompted []string
	prompt := func(_ context.Context, provider string) (string, error) {
		prompted = append(prompted, provider)
		return " typed-key ", nil
	}

	key, err := readAPIKey(ctx, "google", []string{"arg-key"}, keySource{piped: true, stdin: stdin, prompt: prompt})
	require.NoError(t, err)
	assert.Equal(t, "arg-key", key)

	key, err = readAPIKey(ctx, "google", nil, keySource{piped: true, stdin: stdin, prompt: prompt})
	require.NoError(t, err)
	assert.Equal(t, "piped-key", key)
	assert.Empty(t, prompted)

	key, err = readAPIKey(ctx, "openai", nil, keySource{stdin: stdin, prompt: prompt})
	require.NoError(t, err)
	assert.Equal(t, "typed-key", key)
	assert.Equal(t, []string{"openai"}, prompted)

	empty := func() ([]byte, error) { return []byte("  \n"), nil }
	_, err = readAPIKey(ctx, "google", nil, keySource{piped: true, stdin: empty, prompt: prompt})
	assert.ErrorContains(t, err, "no API key given")

	aborted := errors.New("user aborted")
	_, err = readAPIKey(ctx, "google", nil, keySource{prompt: func(context.Context, string) (string, error) {
		return "", aborted
	}})
	assert.ErrorIs(t, err, aborted)
}

func TestLineEditor(t *testing.T) {
	var echo bytes.Buffer
	e := &lineEditor{echo: &echo}

	for _, k := range []struct{ name, text string }{
		{"h", "h"}, {"i", "i"}, {"space", " "}, {"x", "x"}, {"backspace", ""}, {"é", "é"}, {"backspace", ""}, {"y", "y"},
	} {
		assert.Equal(t, keyNone, e.key(k.name, k.text))
	}
	assert.Equal(t, "hi y", e.String())
	assert.Equal(t, keySubmit, e.key("enter", ""))
	assert.Equal(t, "hi y", e.String())
	assert.Contains(t, echo.String(), "\b \b")

	e = &lineEditor{echo: &echo}
	assert.Equal(t, keyNone, e.key("backspace", ""))
	assert.Equal(t, keyNone, e.key("up", ""))
	assert.Empty(t, e.String())
	assert.Equal(t, keyHistory, e.key("ctrl+h", ""))
	assert.Equal(t, keyInterrupt, e.key("ctrl+d", ""))

	e = &lineEditor{echo: &echo}
	e.key("a", "a")
	assert.Equal(t, keyNone, e.key("ctrl+d", ""))
	assert.Equal(t, keyInterrupt, e.key("ctrl+c", ""))
}

func TestWriteChatHistory(t *testing.T) {
	var buf bytes.Buffer
	writeChatHistory(&buf, nil)
	assert.Equal(t, "No conversation history yet.\n", buf.String())

	buf.Reset()
	writeChatHistory(&buf, []flows.ChatTurn{
		{Role: flows.RoleUser, Text: "ideas?"},
		{Role: flows.RoleAssistant, Text: "Add a sunset."},
	})
	assert.Contains(t, buf.String(), "you")
	assert.Contains(t, buf.String(), "ideas?")
	assert.Contains(t, buf.String(), "assistant")
	assert.Contains(t, buf.String(), "Add a sunset.")
	assert.Less(t, strings.Index(buf.String(), "ideas?"), strings.Index(buf.String(), "Add a sunset."))
}
