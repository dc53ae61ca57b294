package db

import (
	"database/sql"
)

type GenerationRun struct {
	ID           string         `json:"id"`
	FlowName     string         `json:"flow_name"`
	Model        sql.NullString `json:"model"`
	Status       string         `json:"status"`
	ErrorKind    sql.NullString `json:"error_kind"`
	ErrorMessage sql.NullString `json:"error_message"`
	InputJson    sql.NullString `json:"input_json"`
	OutputJson   sql.NullString `json:"output_json"`
	StartedAt    int64          `json:"started_at"`
	FinishedAt   sql.NullInt64  `json:"finished_at"`
	DurationMs   sql.NullInt64  `json:"duration_ms"`
}
