// Queries mirror sql/runs.sql.

package db

import (
	"context"
	"database/sql"
)

const completeRun = `-- name: CompleteRun :one
UPDATE generation_runs
SET status = ?, error_kind = ?, error_message = ?, output_json = ?, finished_at = ?, duration_ms = ?
WHERE id = ?
RETURNING id, flow_name, model, status, error_kind, error_message, input_json, output_json, started_at, finished_at, duration_ms
`

type CompleteRunParams struct {
	Status       string         `json:"status"`
	ErrorKind    sql.NullString `json:"error_kind"`
	ErrorMessage sql.NullString `json:"error_message"`
	OutputJson   sql.NullString `json:"output_json"`
	FinishedAt   sql.NullInt64  `json:"finished_at"`
	DurationMs   sql.NullInt64  `json:"duration_ms"`
	ID           string         `json:"id"`
}

func (q *Queries) CompleteRun(ctx context.Context, arg CompleteRunParams) (GenerationRun, error) {
	row := q.queryRow(ctx, q.completeRunStmt, completeRun,
		arg.Status,
		arg.ErrorKind,
		arg.ErrorMessage,
		arg.OutputJson,
		arg.FinishedAt,
		arg.DurationMs,
		arg.ID,
	)
	var i GenerationRun
	err := row.Scan(
		&i.ID,
		&i.FlowName,
		&i.Model,
		&i.Status,
		&i.ErrorKind,
		&i.ErrorMessage,
		&i.InputJson,
		&i.OutputJson,
		&i.StartedAt,
		&i.FinishedAt,
		&i.DurationMs,
	)
	return i, err
}

const countRuns = `-- name: CountRuns :one
SELECT COUNT(*) FROM generation_runs
`

func (q *Queries) CountRuns(ctx context.Context) (int64, error) {
	row := q.queryRow(ctx, q.countRunsStmt, countRuns)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countRunsByFlow = `-- name: CountRunsByFlow :one
SELECT COUNT(*) FROM generation_runs WHERE flow_name = ?
`

func (q *Queries) CountRunsByFlow(ctx context.Context, flowName string) (int64, error) {
	row := q.queryRow(ctx, q.countRunsByFlowStmt, countRunsByFlow, flowName)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createRun = `-- name: CreateRun :one
INSERT INTO generation_runs (id, flow_name, model, status, input_json, started_at)
VALUES (?, ?, ?, 'running', ?, ?)
RETURNING id, flow_name, model, status, error_kind, error_message, input_json, output_json, started_at, finished_at, duration_ms
`

type CreateRunParams struct {
	ID        string         `json:"id"`
	FlowName  string         `json:"flow_name"`
	Model     sql.NullString `json:"model"`
	InputJson sql.NullString `json:"input_json"`
	StartedAt int64          `json:"started_at"`
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (GenerationRun, error) {
	row := q.queryRow(ctx, q.createRunStmt, createRun,
		arg.ID,
		arg.FlowName,
		arg.Model,
		arg.InputJson,
		arg.StartedAt,
	)
	var i GenerationRun
	err := row.Scan(
		&i.ID,
		&i.FlowName,
		&i.Model,
		&i.Status,
		&i.ErrorKind,
		&i.ErrorMessage,
		&i.InputJson,
		&i.OutputJson,
		&i.StartedAt,
		&i.FinishedAt,
		&i.DurationMs,
	)
	return i, err
}

const deleteRun = `-- name: DeleteRun :exec
DELETE FROM generation_runs WHERE id = ?
`

func (q *Queries) DeleteRun(ctx context.Context, id string) error {
	_, err := q.exec(ctx, q.deleteRunStmt, deleteRun, id)
	return err
}

const getRun = `-- name: GetRun :one
SELECT id, flow_name, model, status, error_kind, error_message, input_json, output_json, started_at, finished_at, duration_ms FROM generation_runs WHERE id = ?
`

func (q *Queries) GetRun(ctx context.Context, id string) (GenerationRun, error) {
	row := q.queryRow(ctx, q.getRunStmt, getRun, id)
	var i GenerationRun
	err := row.Scan(
		&i.ID,
		&i.FlowName,
		&i.Model,
		&i.Status,
		&i.ErrorKind,
		&i.ErrorMessage,
		&i.InputJson,
		&i.OutputJson,
		&i.StartedAt,
		&i.FinishedAt,
		&i.DurationMs,
	)
	return i, err
}

const getRunsByPrefix = `-- name: GetRunsByPrefix :many
SELECT id, flow_name, model, status, error_kind, error_message, input_json, output_json, started_at, finished_at, duration_ms FROM generation_runs WHERE id LIKE ? || '%' ORDER BY started_at DESC LIMIT 2
`

func (q *Queries) GetRunsByPrefix(ctx context.Context, prefix sql.NullString) ([]GenerationRun, error) {
	rows, err := q.query(ctx, q.getRunsByPrefixStmt, getRunsByPrefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GenerationRun{}
	for rows.Next() {
		var i GenerationRun
		if err := rows.Scan(
			&i.ID,
			&i.FlowName,
			&i.Model,
			&i.Status,
			&i.ErrorKind,
			&i.ErrorMessage,
			&i.InputJson,
			&i.OutputJson,
			&i.StartedAt,
			&i.FinishedAt,
			&i.DurationMs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRuns = `-- name: ListRuns :many
SELECT id, flow_name, model, status, error_kind, error_message, input_json, output_json, started_at, finished_at, duration_ms FROM generation_runs ORDER BY started_at DESC, id DESC LIMIT ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]GenerationRun, error) {
	rows, err := q.query(ctx, q.listRunsStmt, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GenerationRun{}
	for rows.Next() {
		var i GenerationRun
		if err := rows.Scan(
			&i.ID,
			&i.FlowName,
			&i.Model,
			&i.Status,
			&i.ErrorKind,
			&i.ErrorMessage,
			&i.InputJson,
			&i.OutputJson,
			&i.StartedAt,
			&i.FinishedAt,
			&i.DurationMs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRunsByFlow = `-- name: ListRunsByFlow :many
SELECT id, flow_name, model, status, error_kind, error_message, input_json, output_json, started_at, finished_at, duration_ms FROM generation_runs WHERE flow_name = ? ORDER BY started_at DESC, id DESC LIMIT ?
`

type ListRunsByFlowParams struct {
	FlowName string `json:"flow_name"`
	Limit    int64  `json:"limit"`
}

func (q *Queries) ListRunsByFlow(ctx context.Context, arg ListRunsByFlowParams) ([]GenerationRun, error) {
	rows, err := q.query(ctx, q.listRunsByFlowStmt, listRunsByFlow, arg.FlowName, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GenerationRun{}
	for rows.Next() {
		var i GenerationRun
		if err := rows.Scan(
			&i.ID,
			&i.FlowName,
			&i.Model,
			&i.Status,
			&i.ErrorKind,
			&i.ErrorMessage,
			&i.InputJson,
			&i.OutputJson,
			&i.StartedAt,
			&i.FinishedAt,
			&i.DurationMs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRunsByStatus = `-- name: ListRunsByStatus :many
SELECT id, flow_name, model, status, error_kind, error_message, input_json, output_json, started_at, finished_at, duration_ms FROM generation_runs WHERE status = ? ORDER BY started_at DESC, id DESC LIMIT ?
`

type ListRunsByStatusParams struct {
	Status string `json:"status"`
	Limit  int64  `json:"limit"`
}

func (q *Queries) ListRunsByStatus(ctx context.Context, arg ListRunsByStatusParams) ([]GenerationRun, error) {
	rows, err := q.query(ctx, q.listRunsByStatusStmt, listRunsByStatus, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GenerationRun{}
	for rows.Next() {
		var i GenerationRun
		if err := rows.Scan(
			&i.ID,
			&i.FlowName,
			&i.Model,
			&i.Status,
			&i.ErrorKind,
			&i.ErrorMessage,
			&i.InputJson,
			&i.OutputJson,
			&i.StartedAt,
			&i.FinishedAt,
			&i.DurationMs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const pruneRunsByAge = `-- name: PruneRunsByAge :exec
DELETE FROM generation_runs WHERE started_at < ?
`

func (q *Queries) PruneRunsByAge(ctx context.Context, startedAt int64) error {
	_, err := q.exec(ctx, q.pruneRunsByAgeStmt, pruneRunsByAge, startedAt)
	return err
}

const pruneRunsByCount = `-- name: PruneRunsByCount :exec
DELETE FROM generation_runs WHERE id NOT IN (
    SELECT id FROM generation_runs ORDER BY started_at DESC, id DESC LIMIT ?
)
`

func (q *Queries) PruneRunsByCount(ctx context.Context, limit int64) error {
	_, err := q.exec(ctx, q.pruneRunsByCountStmt, pruneRunsByCount, limit)
	return err
}
