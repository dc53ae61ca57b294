package flows

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/alexcabrera/easel/internal/datauri"
	"github.com/alexcabrera/easel/internal/db"
	"github.com/alexcabrera/easel/internal/log"
)

// RunStatus is the outcome of a recorded run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrAmbiguousRunID = errors.New("ambiguous run ID prefix: multiple matches")
)

// Run is a recorded flow execution. Image payloads in InputJSON and
// OutputJSON are replaced by their media type and size.
type Run struct {
	ID           string     `json:"id"`
	FlowName     string     `json:"flow_name"`
	Model        string     `json:"model"`
	Status       RunStatus  `json:"status"`
	ErrorKind    ErrorKind  `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	InputJSON    string     `json:"input_json"`
	OutputJSON   string     `json:"output_json,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
}

// RunFilter contains optional filters for listing runs.
type RunFilter struct {
	FlowName string
	Status   RunStatus
	Limit    int64
}

// HistoryService manages the generation run log.
type HistoryService struct {
	queries *db.Queries
}

// NewHistoryService creates a new history service.
func NewHistoryService(queries *db.Queries) *HistoryService {
	return &HistoryService{queries: queries}
}

// RecordStart creates a running record and returns its ID.
func (h *HistoryService) RecordStart(ctx context.Context, flowName, modelRef string, input any) (string, error) {
	id := ulid.Make().String()

	_, err := h.queries.CreateRun(ctx, db.CreateRunParams{
		ID:        id,
		FlowName:  flowName,
		Model:     toNullString(modelRef),
		InputJson: toNullString(redactJSON(input)),
		StartedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecordComplete settles a running record with the execution result.
func (h *HistoryService) RecordComplete(ctx context.Context, runID string, out *Output, runErr error, startedAt time.Time) (*Run, error) {
	now := time.Now()

	params := db.CompleteRunParams{
		ID:         runID,
		Status:     string(RunStatusSuccess),
		FinishedAt: sql.NullInt64{Int64: now.UnixMilli(), Valid: true},
		DurationMs: sql.NullInt64{Int64: now.Sub(startedAt).Milliseconds(), Valid: true},
	}
	if runErr != nil {
		params.Status = string(RunStatusFailed)
		params.ErrorKind = toNullString(string(KindOf(runErr)))
		params.ErrorMessage = toNullString(runErr.Error())
	} else if out != nil {
		params.OutputJson = toNullString(redactJSON(out))
	}

	row, err := h.queries.CompleteRun(ctx, params)
	if err != nil {
		return nil, err
	}
	return toRun(row), nil
}

// GetRun retrieves a run by ID or unique ID prefix.
func (h *HistoryService) GetRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	row, err := h.queries.GetRun(ctx, idOrPrefix)
	if err == nil {
		return toRun(row), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rows, err := h.queries.GetRunsByPrefix(ctx, sql.NullString{String: idOrPrefix, Valid: true})
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrRunNotFound
	case 1:
		return toRun(rows[0]), nil
	default:
		return nil, ErrAmbiguousRunID
	}
}

// ListRuns returns the most recent runs, newest first.
func (h *HistoryService) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []db.GenerationRun
	var err error

	switch {
	case filter.FlowName != "":
		rows, err = h.queries.ListRunsByFlow(ctx, db.ListRunsByFlowParams{
			FlowName: filter.FlowName,
			Limit:    limit,
		})
	case filter.Status != "":
		rows, err = h.queries.ListRunsByStatus(ctx, db.ListRunsByStatusParams{
			Status: string(filter.Status),
			Limit:  limit,
		})
	default:
		rows, err = h.queries.ListRuns(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	runs := make([]*Run, len(rows))
	for i, row := range rows {
		runs[i] = toRun(row)
	}
	return runs, nil
}

// Prune applies age and count retention. Zero disables a policy.
func (h *HistoryService) Prune(ctx context.Context, maxAgeDays int, maxCount int64) error {
	if maxAgeDays > 0 {
		cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).UnixMilli()
		if err := h.queries.PruneRunsByAge(ctx, cutoff); err != nil {
			return err
		}
	}
	if maxCount > 0 {
		if err := h.queries.PruneRunsByCount(ctx, maxCount); err != nil {
			return err
		}
	}
	return nil
}

// CountRuns returns the number of recorded runs.
func (h *HistoryService) CountRuns(ctx context.Context) (int64, error) {
	return h.queries.CountRuns(ctx)
}

// RecordOptions configures Wrap.
type RecordOptions struct {
	Models        func(flowName string) string // resolves the model ref for a flow
	RetentionDays int
	MaxRuns       int64
	Logger        *slog.Logger
}

// Wrap returns a Runner that records every execution of next. Recording
// failures are logged and never change the execution result.
func (h *HistoryService) Wrap(next Runner, opts RecordOptions) Runner {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &recorder{history: h, next: next, opts: opts}
}

type recorder struct {
	history *HistoryService
	next    Runner
	opts    RecordOptions
}

func (r *recorder) Execute(ctx context.Context, flowName string, input any) (*Output, error) {
	modelRef := ""
	if r.opts.Models != nil {
		modelRef = r.opts.Models(flowName)
	}

	// Records are written even when ctx is cancelled.
	dbCtx := context.WithoutCancel(ctx)
	started := time.Now()

	runID, err := r.history.RecordStart(dbCtx, flowName, modelRef, input)
	if err != nil {
		r.opts.Logger.Warn("record run start", log.Flow(flowName), log.Error(err))
	}

	out, runErr := r.next.Execute(ctx, flowName, input)

	if runID != "" {
		if _, err := r.history.RecordComplete(dbCtx, runID, out, runErr, started); err != nil {
			r.opts.Logger.Warn("record run completion", log.RunID(runID), log.Error(err))
		}
		if err := r.history.Prune(dbCtx, r.opts.RetentionDays, r.opts.MaxRuns); err != nil {
			r.opts.Logger.Warn("prune runs", log.Error(err))
		}
	}

	return out, runErr
}

// redactJSON encodes v with every data URI string replaced by its
// description.
func redactJSON(v any) string {
	var data []byte
	switch t := v.(type) {
	case nil:
		return ""
	case json.RawMessage:
		data = t
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		data = b
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}
	out, err := json.Marshal(redact(decoded))
	if err != nil {
		return string(data)
	}
	return string(out)
}

func redact(v any) any {
	switch t := v.(type) {
	case string:
		if datauri.Valid(t) {
			return datauri.Describe(t)
		}
		return t
	case []any:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = redact(t[k])
		}
		return t
	default:
		return t
	}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toRun(row db.GenerationRun) *Run {
	run := &Run{
		ID:           row.ID,
		FlowName:     row.FlowName,
		Model:        row.Model.String,
		Status:       RunStatus(row.Status),
		ErrorKind:    ErrorKind(row.ErrorKind.String),
		ErrorMessage: row.ErrorMessage.String,
		InputJSON:    row.InputJson.String,
		OutputJSON:   row.OutputJson.String,
		StartedAt:    time.UnixMilli(row.StartedAt),
	}
	if row.FinishedAt.Valid {
		finishedAt := time.UnixMilli(row.FinishedAt.Int64)
		run.FinishedAt = &finishedAt
	}
	if row.DurationMs.Valid {
		run.DurationMs = row.DurationMs.Int64
	}
	return run
}
