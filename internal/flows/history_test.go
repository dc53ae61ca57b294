package flows

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexcabrera/easel/internal/db"
)

func newTestHistory(t *testing.T) *HistoryService {
	t.Helper()

	sqlDB, queries, err := db.ConnectWithQueries(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		queries.Close()
		sqlDB.Close()
	})

	return NewHistoryService(queries)
}

func TestHistoryRecordAndComplete(t *testing.T) {
	ctx := context.Background()
	svc := newTestHistory(t)

	runID, err := svc.RecordStart(ctx, VariationFlow, "googleai/image-test", VariationInput{
		Prompt:      "warmer",
		SourceImage: pngURI,
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := svc.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, VariationFlow, run.FlowName)
	assert.Equal(t, "googleai/image-test", run.Model)
	assert.JSONEq(t, `{"prompt":"warmer","sourceImage":"image/png (3 bytes)"}`, run.InputJSON)
	assert.Nil(t, run.FinishedAt)

	done, err := svc.RecordComplete(ctx, runID, &Output{Image: pngURI}, nil, run.StartedAt)
	require.NoError(t, err)
	assert.Equal(t, RunStatusSuccess, done.Status)
	assert.JSONEq(t, `{"image":"image/png (3 bytes)"}`, done.OutputJSON)
	require.NotNil(t, done.FinishedAt)
	assert.GreaterOrEqual(t, done.DurationMs, int64(0))
}

func TestHistoryRecordFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestHistory(t)

	runID, err := svc.RecordStart(ctx, ChatFlow, "", `{"message":"hi"}`)
	require.NoError(t, err)

	runErr := &Error{Kind: KindModelUnavailable, Flow: ChatFlow, Detail: "quota exceeded"}
	run, err := svc.RecordComplete(ctx, runID, nil, runErr, time.Now())
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, KindModelUnavailable, run.ErrorKind)
	assert.Contains(t, run.ErrorMessage, "quota exceeded")
	assert.Empty(t, run.OutputJSON)
	assert.Empty(t, run.Model)
}

func TestHistoryGetRunByPrefix(t *testing.T) {
	ctx := context.Background()
	svc := newTestHistory(t)

	runID, err := svc.RecordStart(ctx, ChatFlow, "", `{"message":"hi"}`)
	require.NoError(t, err)

	run, err := svc.GetRun(ctx, runID[:20])
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)

	_, err = svc.GetRun(ctx, "ZZZZ")
	assert.ErrorIs(t, err, ErrRunNotFound)

	// An empty prefix matches every run.
	_, err = svc.RecordStart(ctx, ChatFlow, "", `{"message":"again"}`)
	require.NoError(t, err)
	_, err = svc.GetRun(ctx, "")
	assert.ErrorIs(t, err, ErrAmbiguousRunID)
}

func TestHistoryListAndPrune(t *testing.T) {
	ctx := context.Background()
	svc := newTestHistory(t)

	for _, name := range []string{ChatFlow, VariationFlow, ChatFlow} {
		_, err := svc.RecordStart(ctx, name, "", `{}`)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := svc.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ChatFlow, all[0].FlowName)
	assert.True(t, !all[0].StartedAt.Before(all[1].StartedAt))

	chats, err := svc.ListRuns(ctx, RunFilter{FlowName: ChatFlow})
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	running, err := svc.ListRuns(ctx, RunFilter{Status: RunStatusRunning, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, running, 1)

	require.NoError(t, svc.Prune(ctx, 0, 2))
	count, err := svc.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, svc.Prune(ctx, 30, 0))
	count, err = svc.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

type stubRunner struct {
	out *Output
	err error
}

func (s stubRunner) Execute(context.Context, string, any) (*Output, error) {
	return s.out, s.err
}

func TestHistoryWrap(t *testing.T) {
	ctx := context.Background()
	svc := newTestHistory(t)

	models := func(name string) string { return "googleai/" + name }

	ok := svc.Wrap(stubRunner{out: &Output{Image: pngURI}}, RecordOptions{Models: models})
	out, err := ok.Execute(ctx, BackgroundFillFlow, BackgroundFillInput{Prompt: "x", Width: 1, Height: 1})
	require.NoError(t, err)
	assert.Equal(t, pngURI, out.Image)

	cause := &Error{Kind: KindEmptyGenerationResult, Flow: VariationFlow}
	failing := svc.Wrap(stubRunner{err: cause}, RecordOptions{MaxRuns: 10})
	_, err = failing.Execute(ctx, VariationFlow, VariationInput{Prompt: "x", SourceImage: pngURI})
	assert.True(t, errors.Is(err, ErrEmptyGenerationResult))

	runs, err := svc.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byFlow := map[string]*Run{}
	for _, r := range runs {
		byFlow[r.FlowName] = r
	}
	assert.Equal(t, RunStatusSuccess, byFlow[BackgroundFillFlow].Status)
	assert.Equal(t, "googleai/"+BackgroundFillFlow, byFlow[BackgroundFillFlow].Model)
	assert.Equal(t, RunStatusFailed, byFlow[VariationFlow].Status)
	assert.Equal(t, KindEmptyGenerationResult, byFlow[VariationFlow].ErrorKind)
}

func TestHistoryWrapCancelledContext(t *testing.T) {
	svc := newTestHistory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wrapped := svc.Wrap(stubRunner{err: context.Canceled}, RecordOptions{})
	_, err := wrapped.Execute(ctx, ChatFlow, ChatInput{Message: "hi"})
	assert.ErrorIs(t, err, context.Canceled)

	runs, err := svc.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
}
