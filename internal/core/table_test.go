package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return NewTable([]string{"Site", "Temp", "Sal"}, [][]string{
		{"A", "10", "35"},
		{"B", "11"},
	})
}

func TestNewTable_PadsRows(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, []string{"B", "11", ""}, tbl.Rows[1])
	assert.Equal(t, 3, tbl.Width())
	assert.Equal(t, 2, tbl.Len())
}

func TestTable_CloneIsDeep(t *testing.T) {
	tbl := sampleTable()
	c := tbl.Clone()
	require.True(t, tbl.Equal(c))

	c.Rows[0][0] = "Z"
	c.Columns[1] = "T"
	c.Kinds[2] = KindFloat
	assert.Equal(t, "A", tbl.Rows[0][0])
	assert.Equal(t, "Temp", tbl.Columns[1])
	assert.Equal(t, KindString, tbl.Kinds[2])
	assert.False(t, tbl.Equal(c))
}

func TestTable_Index(t *testing.T) {
	tbl := NewTable([]string{"Temp", " temp ", "Sal"}, nil)
	assert.Equal(t, 1, tbl.Index(" temp "))
	assert.Equal(t, 0, tbl.Index("TEMP"))
	assert.Equal(t, 2, tbl.Index("sal"))
	assert.Equal(t, -1, tbl.Index("pH"))

	_, err := tbl.Indexes([]string{"Sal", "pH"})
	require.Error(t, err)
	assert.Equal(t, "COL001", MapError(err).Code)
}

func TestTable_AddColumn(t *testing.T) {
	tbl := sampleTable()
	require.NoError(t, tbl.AddColumn(1, "Depth", KindInt, []string{"1", "2"}))
	assert.Equal(t, []string{"Site", "Depth", "Temp", "Sal"}, tbl.Columns)
	assert.Equal(t, KindInt, tbl.Kinds[1])
	assert.Equal(t, []string{"A", "1", "10", "35"}, tbl.Rows[0])

	require.NoError(t, tbl.AddColumn(-1, "Flag", "", nil))
	assert.Equal(t, "Flag", tbl.Columns[4])
	assert.Equal(t, KindString, tbl.Kinds[4])

	assert.Error(t, tbl.AddColumn(0, "Site", KindString, nil))
	assert.Error(t, tbl.AddColumn(0, "Bad", KindString, []string{"only one"}))
}

func TestTable_DropAndSelect(t *testing.T) {
	tbl := sampleTable()
	require.NoError(t, tbl.DropColumns("temp"))
	assert.Equal(t, []string{"Site", "Sal"}, tbl.Columns)
	assert.Equal(t, []string{"A", "35"}, tbl.Rows[0])

	assert.Error(t, tbl.DropColumns("missing"))

	sel := sampleTable().Select([]int{2, 0})
	assert.Equal(t, []string{"Sal", "Site"}, sel.Columns)
	assert.Equal(t, []string{"", "B"}, sel.Rows[1])
}

func TestTable_ColumnAndRecords(t *testing.T) {
	tbl := sampleTable()
	vals, err := tbl.Column("Temp")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11"}, vals)

	recs := tbl.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, tbl.Columns, recs[0])
	recs[1][0] = "changed"
	assert.Equal(t, "A", tbl.Rows[0][0])
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"":         KindString,
		"Integer":  KindInt,
		" number ": KindFloat,
		"boolean":  KindBool,
		"date":     KindDatetime,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("blob")
	assert.Error(t, err)
}
