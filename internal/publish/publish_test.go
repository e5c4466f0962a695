package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx records statements; unused pgx.Tx methods panic through the nil embed.
type fakeTx struct {
	pgx.Tx
	execs      []string
	table      pgx.Identifier
	columns    []string
	rows       [][]any
	copyErr    error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.table, f.columns = table, cols
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.rows = append(f.rows, vals)
	}
	return int64(len(f.rows)), src.Err()
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx    *fakeTx
	calls int
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	d.calls++
	return d.tx, nil
}

func castTable() *core.Table {
	t := core.NewTable(
		[]string{"Station", "Depth (m)", "Temp", "QC", "Time"},
		[][]string{
			{"ST01", "10", "9.85", "yes", "2024-01-15 13:45"},
			{"ST02", "", "10.5", "no", ""},
		},
	)
	t.Kinds = []core.Kind{core.KindString, core.KindInt, core.KindFloat, core.KindBool, core.KindDatetime}
	return t
}

func TestPublish_CreatesAndCopies(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	p := New(db, "ocean", time.Minute)

	res, err := p.Publish(context.Background(), "cast.csv", castTable(), Request{Table: "CTD Casts"})
	require.NoError(t, err)

	assert.Equal(t, "ocean", res.Schema)
	assert.Equal(t, "ctd_casts", res.Table)
	assert.Equal(t, ModeAppend, res.Mode)
	assert.Equal(t, int64(2), res.Rows)

	tx := db.tx
	require.Len(t, tx.execs, 1)
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "ocean"."ctd_casts" ("station" TEXT, "depth_(m)" BIGINT, "temp" NUMERIC, "qc" BOOLEAN, "time" TIMESTAMP)`,
		tx.execs[0])
	assert.Equal(t, pgx.Identifier{"ocean", "ctd_casts"}, tx.table)
	assert.Equal(t, []string{"station", "depth_(m)", "temp", "qc", "time"}, tx.columns)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	first := tx.rows[0]
	assert.Equal(t, pgtype.Text{String: "ST01", Valid: true}, first[0])
	assert.Equal(t, pgtype.Int8{Int64: 10, Valid: true}, first[1])
	assert.Equal(t, pgtype.Bool{Bool: true, Valid: true}, first[3])
	ts := first[4].(pgtype.Timestamp)
	assert.Equal(t, time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC), ts.Time.UTC())

	second := tx.rows[1]
	assert.False(t, second[1].(pgtype.Int8).Valid)
	assert.False(t, second[4].(pgtype.Timestamp).Valid)
}

func TestPublish_ReplaceTruncates(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	_, err := New(db, "", 0).Publish(context.Background(), "cast.csv", castTable(), Request{Table: "casts", Mode: ModeReplace})
	require.NoError(t, err)

	require.Len(t, db.tx.execs, 2)
	assert.Equal(t, `TRUNCATE TABLE "public"."casts"`, db.tx.execs[1])
}

func TestPublish_RejectsInvalidCells(t *testing.T) {
	tbl := castTable()
	tbl.Rows[1][1] = "deep"
	db := &fakeDB{tx: &fakeTx{}}

	_, err := New(db, "public", 0).Publish(context.Background(), "cast.csv", tbl, Request{Table: "casts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed: row 2, Depth (m): invalid integer")
	assert.Equal(t, "DB005", core.MapError(err).Code)
	assert.Zero(t, db.calls, "nothing is sent for an invalid table")
}

func TestPublish_RejectsAmbiguousDates(t *testing.T) {
	tests := []struct {
		name string
		when string
		ok   bool
	}{
		{"day and month both under 13", "05/03/2024", false},
		{"day over 12", "25/03/2024", true},
		{"iso", "2024-03-05", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := castTable()
			tbl.Rows[0][4] = tt.when
			db := &fakeDB{tx: &fakeTx{}}

			_, err := New(db, "public", 0).Publish(context.Background(), "cast.csv", tbl, Request{Table: "casts"})
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ambiguous date")
			assert.Equal(t, "DB005", core.MapError(err).Code)
			assert.Zero(t, db.calls)
		})
	}
}

func TestPublish_RequestValidation(t *testing.T) {
	p := New(&fakeDB{tx: &fakeTx{}}, "public", 0)

	_, err := p.Publish(context.Background(), "cast.csv", castTable(), Request{})
	require.Error(t, err)
	assert.Equal(t, "TASK002", core.MapError(err).Code)

	_, err = p.Publish(context.Background(), "cast.csv", castTable(), Request{Table: "x", Mode: "upsert"})
	assert.Error(t, err)
}

func TestPublish_CopyFailureRollsBack(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{copyErr: errors.New(`duplicate key value violates unique constraint`)}}

	_, err := New(db, "public", 0).Publish(context.Background(), "cast.csv", castTable(), Request{Table: "casts"})
	require.Error(t, err)
	assert.Equal(t, "DB004", core.MapError(err).Code)
	assert.True(t, db.tx.rolledBack)
	assert.False(t, db.tx.committed)
}

func TestPublish_Disabled(t *testing.T) {
	var p *Publisher
	_, err := p.Publish(context.Background(), "cast.csv", castTable(), Request{Table: "casts"})
	assert.ErrorIs(t, err, ErrPublishingDisabled)
	assert.Equal(t, "DB001", core.MapError(err).Code)
	assert.Empty(t, p.Schema())
}

func TestDBColumns(t *testing.T) {
	cols, err := dbColumns([]string{" Depth (m) ", "Station"})
	require.NoError(t, err)
	assert.Equal(t, []string{"depth_(m)", "station"}, cols)

	_, err = dbColumns([]string{"Temp", "temp"})
	assert.ErrorContains(t, err, "duplicate column")
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"a""b"`, quoteIdentifier(`a"b`))
}

func TestCellValue(t *testing.T) {
	v, err := cellValue("(1,234.5)", core.KindFloat)
	require.NoError(t, err)
	f, err := v.(pgtype.Numeric).Float64Value()
	require.NoError(t, err)
	assert.InDelta(t, -1234.5, f.Float64, 1e-9)

	_, err = cellValue("2.5", core.KindInt)
	assert.ErrorContains(t, err, "cannot convert")

	v, err = cellValue("9007199254740993", core.KindInt)
	require.NoError(t, err)
	assert.Equal(t, pgtype.Int8{Int64: 9007199254740993, Valid: true}, v)

	_, err = cellValue("9223372036854775808", core.KindInt)
	assert.ErrorContains(t, err, "cannot convert")

	_, err = cellValue("05/03/2024", core.KindDatetime)
	assert.ErrorContains(t, err, "ambiguous date")

	v, err = cellValue("25/03/2024", core.KindDatetime)
	require.NoError(t, err)
	assert.Equal(t, pgtype.Timestamp{Time: time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), Valid: true}, v)

	v, err = cellValue(`="ST01"`, core.KindString)
	require.NoError(t, err)
	assert.Equal(t, pgtype.Text{String: "ST01", Valid: true}, v)
}
