package db

import (
	"context"
	"database/sql"
	"fmt"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func Prepare(ctx context.Context, db DBTX) (*Queries, error) {
	q := Queries{db: db}
	var err error
	if q.completeRunStmt, err = db.PrepareContext(ctx, completeRun); err != nil {
		return nil, fmt.Errorf("error preparing query CompleteRun: %w", err)
	}
	if q.countRunsStmt, err = db.PrepareContext(ctx, countRuns); err != nil {
		return nil, fmt.Errorf("error preparing query CountRuns: %w", err)
	}
	if q.countRunsByFlowStmt, err = db.PrepareContext(ctx, countRunsByFlow); err != nil {
		return nil, fmt.Errorf("error preparing query CountRunsByFlow: %w", err)
	}
	if q.createRunStmt, err = db.PrepareContext(ctx, createRun); err != nil {
		return nil, fmt.Errorf("error preparing query CreateRun: %w", err)
	}
	if q.deleteRunStmt, err = db.PrepareContext(ctx, deleteRun); err != nil {
		return nil, fmt.Errorf("error preparing query DeleteRun: %w", err)
	}
	if q.getRunStmt, err = db.PrepareContext(ctx, getRun); err != nil {
		return nil, fmt.Errorf("error preparing query GetRun: %w", err)
	}
	if q.getRunsByPrefixStmt, err = db.PrepareContext(ctx, getRunsByPrefix); err != nil {
		return nil, fmt.Errorf("error preparing query GetRunsByPrefix: %w", err)
	}
	if q.listRunsStmt, err = db.PrepareContext(ctx, listRuns); err != nil {
		return nil, fmt.Errorf("error preparing query ListRuns: %w", err)
	}
	if q.listRunsByFlowStmt, err = db.PrepareContext(ctx, listRunsByFlow); err != nil {
		return nil, fmt.Errorf("error preparing query ListRunsByFlow: %w", err)
	}
	if q.listRunsByStatusStmt, err = db.PrepareContext(ctx, listRunsByStatus); err != nil {
		return nil, fmt.Errorf("error preparing query ListRunsByStatus: %w", err)
	}
	if q.pruneRunsByAgeStmt, err = db.PrepareContext(ctx, pruneRunsByAge); err != nil {
		return nil, fmt.Errorf("error preparing query PruneRunsByAge: %w", err)
	}
	if q.pruneRunsByCountStmt, err = db.PrepareContext(ctx, pruneRunsByCount); err != nil {
		return nil, fmt.Errorf("error preparing query PruneRunsByCount: %w", err)
	}
	return &q, nil
}

func (q *Queries) Close() error {
	var err error
	for name, stmt := range map[string]*sql.Stmt{
		"completeRunStmt":      q.completeRunStmt,
		"countRunsStmt":        q.countRunsStmt,
		"countRunsByFlowStmt":  q.countRunsByFlowStmt,
		"createRunStmt":        q.createRunStmt,
		"deleteRunStmt":        q.deleteRunStmt,
		"getRunStmt":           q.getRunStmt,
		"getRunsByPrefixStmt":  q.getRunsByPrefixStmt,
		"listRunsStmt":         q.listRunsStmt,
		"listRunsByFlowStmt":   q.listRunsByFlowStmt,
		"listRunsByStatusStmt": q.listRunsByStatusStmt,
		"pruneRunsByAgeStmt":   q.pruneRunsByAgeStmt,
		"pruneRunsByCountStmt": q.pruneRunsByCountStmt,
	} {
		if stmt == nil {
			continue
		}
		if cerr := stmt.Close(); cerr != nil {
			err = fmt.Errorf("error closing %s: %w", name, cerr)
		}
	}
	return err
}

func (q *Queries) exec(ctx context.Context, stmt *sql.Stmt, query string, args ...interface{}) (sql.Result, error) {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	case stmt != nil:
		return stmt.ExecContext(ctx, args...)
	default:
		return q.db.ExecContext(ctx, query, args...)
	}
}

func (q *Queries) query(ctx context.Context, stmt *sql.Stmt, query string, args ...interface{}) (*sql.Rows, error) {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).QueryContext(ctx, args...)
	case stmt != nil:
		return stmt.QueryContext(ctx, args...)
	default:
		return q.db.QueryContext(ctx, query, args...)
	}
}

func (q *Queries) queryRow(ctx context.Context, stmt *sql.Stmt, query string, args ...interface{}) *sql.Row {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).QueryRowContext(ctx, args...)
	case stmt != nil:
		return stmt.QueryRowContext(ctx, args...)
	default:
		return q.db.QueryRowContext(ctx, query, args...)
	}
}

type Queries struct {
	db                   DBTX
	tx                   *sql.Tx
	completeRunStmt      *sql.Stmt
	countRunsStmt        *sql.Stmt
	countRunsByFlowStmt  *sql.Stmt
	createRunStmt        *sql.Stmt
	deleteRunStmt        *sql.Stmt
	getRunStmt           *sql.Stmt
	getRunsByPrefixStmt  *sql.Stmt
	listRunsStmt         *sql.Stmt
	listRunsByFlowStmt   *sql.Stmt
	listRunsByStatusStmt *sql.Stmt
	pruneRunsByAgeStmt   *sql.Stmt
	pruneRunsByCountStmt *sql.Stmt
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db:                   tx,
		tx:                   tx,
		completeRunStmt:      q.completeRunStmt,
		countRunsStmt:        q.countRunsStmt,
		countRunsByFlowStmt:  q.countRunsByFlowStmt,
		createRunStmt:        q.createRunStmt,
		deleteRunStmt:        q.deleteRunStmt,
		getRunStmt:           q.getRunStmt,
		getRunsByPrefixStmt:  q.getRunsByPrefixStmt,
		listRunsStmt:         q.listRunsStmt,
		listRunsByFlowStmt:   q.listRunsByFlowStmt,
		listRunsByStatusStmt: q.listRunsByStatusStmt,
		pruneRunsByAgeStmt:   q.pruneRunsByAgeStmt,
		pruneRunsByCountStmt: q.pruneRunsByCountStmt,
	}
}
