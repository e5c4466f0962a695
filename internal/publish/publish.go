// Package publish copies cleaned workspace tables into PostgreSQL.
//
// Each publish runs in one transaction: the target table is created from the
// column kinds when missing, optionally truncated, then filled with COPY.
// Cells are validated against their kinds before anything is sent.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/jackc/pgx/v5"
)

// ErrPublishingDisabled is returned when no database is configured.
var ErrPublishingDisabled = errors.New("publishing disabled")

// maxValidationErrors caps the cell errors reported for a rejected table.
const maxValidationErrors = 20

// Publish modes.
const (
	ModeAppend  = "append"
	ModeReplace = "replace"
)

// Request names the destination of a publish.
type Request struct {
	Table string `json:"table" validate:"required,max=63"`
	Mode  string `json:"mode" validate:"omitempty,oneof=append replace"`
}

// Result describes a finished publish.
type Result struct {
	Schema   string        `json:"schema"`
	Table    string        `json:"table"`
	Mode     string        `json:"mode"`
	Columns  []string      `json:"columns"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher writes tables to one database schema.
type Publisher struct {
	db      txBeginner
	schema  string
	timeout time.Duration
}

// New returns a Publisher. A zero timeout means no limit beyond ctx.
func New(db txBeginner, schema string, timeout time.Duration) *Publisher {
	if schema == "" {
		schema = "public"
	}
	return &Publisher{db: db, schema: schema, timeout: timeout}
}

// Schema returns the schema tables are written to.
func (p *Publisher) Schema() string {
	if p == nil {
		return ""
	}
	return p.schema
}

// Publish copies t into the table named by req. A nil Publisher returns
// ErrPublishingDisabled.
func (p *Publisher) Publish(ctx context.Context, file string, t *core.Table, req Request) (Result, error) {
	if p == nil || p.db == nil {
		return Result{}, ErrPublishingDisabled
	}
	if err := core.ValidateStruct(req); err != nil {
		return Result{}, fmt.Errorf("invalid params for publish: %w", err)
	}
	if res := core.ValidateTable(t, maxValidationErrors); !res.Valid {
		return Result{}, res.Err()
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeAppend
	}
	table := toDBColumnName(req.Table)
	cols, err := dbColumns(t.Columns)
	if err != nil {
		return Result{}, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, createTableSQL(p.schema, table, cols, t)); err != nil {
		return Result{}, fmt.Errorf("create table %s: %w", table, err)
	}
	if mode == ModeReplace {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+qualified(p.schema, table)); err != nil {
			return Result{}, fmt.Errorf("truncate %s: %w", table, err)
		}
	}

	rows := t.Rows
	n, err := tx.CopyFrom(ctx, pgx.Identifier{p.schema, table}, cols,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return rowValues(t, i)
		}))
	if err != nil {
		return Result{}, fmt.Errorf("copy into %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit publish: %w", err)
	}

	res := Result{
		Schema:   p.schema,
		Table:    table,
		Mode:     mode,
		Columns:  cols,
		Rows:     n,
		Duration: time.Since(start),
	}
	slog.Info("table published",
		"file", file,
		"schema", res.Schema,
		"table", res.Table,
		"mode", res.Mode,
		"rows", res.Rows,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// dbColumns maps headers to column names, rejecting collisions.
func dbColumns(headers []string) ([]string, error) {
	cols := make([]string, len(headers))
	seen := make(map[string]string, len(headers))
	for i, h := range headers {
		c := toDBColumnName(h)
		if c == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if prev, ok := seen[c]; ok {
			return nil, fmt.Errorf("duplicate column %q (from %q and %q)", c, prev, h)
		}
		seen[c] = h
		cols[i] = c
	}
	return cols, nil
}

func createTableSQL(schema, table string, cols []string, t *core.Table) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdentifier(c) + " " + columnType(t.KindOf(i))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified(schema, table), strings.Join(defs, ", "))
}

// columnType maps a column kind to its PostgreSQL type.
func columnType(k core.Kind) string {
	switch k {
	case core.KindInt:
		return "BIGINT"
	case core.KindFloat:
		return "NUMERIC"
	case core.KindBool:
		return "BOOLEAN"
	case core.KindDatetime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func qualified(schema, table string) string {
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// toDBColumnName converts a display header to a database column name.
func toDBColumnName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}
