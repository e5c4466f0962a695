package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(t *Table, v string) *Table {
	next := t.Clone()
	next.Rows[0][0] = v
	return next
}

func TestFileRegistry_UndoRedoRestoresExactly(t *testing.T) {
	r := NewFileRegistry(10)
	orig := NewTable([]string{"a"}, [][]string{{"0"}})
	r.Add("f.csv", orig)

	s1 := step(orig, "1")
	s2 := step(s1, "2")
	require.NoError(t, r.Commit("f.csv", s1, AppliedTask{Task: "one"}))
	require.NoError(t, r.Commit("f.csv", s2, AppliedTask{Task: "two"}))

	f, err := r.Get("f.csv")
	require.NoError(t, err)
	assert.True(t, f.Current.Equal(s2))
	assert.Len(t, f.Applied, 2)

	require.NoError(t, r.Undo("f.csv"))
	assert.True(t, f.Current.Equal(s1))
	assert.Equal(t, "one", f.Applied[len(f.Applied)-1].Task)

	require.NoError(t, r.Undo("f.csv"))
	assert.True(t, f.Current.Equal(orig))
	assert.Empty(t, f.Applied)
	assert.ErrorIs(t, r.Undo("f.csv"), ErrNothingToUndo)

	require.NoError(t, r.Redo("f.csv"))
	require.NoError(t, r.Redo("f.csv"))
	assert.True(t, f.Current.Equal(s2))
	assert.Equal(t, []string{"one", "two"}, []string{f.Applied[0].Task, f.Applied[1].Task})
	assert.ErrorIs(t, r.Redo("f.csv"), ErrNothingToRedo)
}

func TestFileRegistry_CommitClearsRedo(t *testing.T) {
	r := NewFileRegistry(10)
	orig := NewTable([]string{"a"}, [][]string{{"0"}})
	r.Add("f.csv", orig)

	require.NoError(t, r.Commit("f.csv", step(orig, "1"), AppliedTask{Task: "one"}))
	require.NoError(t, r.Undo("f.csv"))

	f, _ := r.Get("f.csv")
	assert.True(t, f.CanRedo())

	require.NoError(t, r.Commit("f.csv", step(orig, "x"), AppliedTask{Task: "other"}))
	assert.False(t, f.CanRedo())
	assert.ErrorIs(t, r.Redo("f.csv"), ErrNothingToRedo)
}

func TestFileRegistry_CommitStoresCopy(t *testing.T) {
	r := NewFileRegistry(10)
	orig := NewTable([]string{"a"}, [][]string{{"0"}})
	r.Add("f.csv", orig)
	orig.Rows[0][0] = "mutated"

	next := step(orig, "1")
	require.NoError(t, r.Commit("f.csv", next, AppliedTask{Task: "one"}))
	next.Rows[0][0] = "mutated again"

	f, _ := r.Get("f.csv")
	assert.Equal(t, "1", f.Current.Rows[0][0])
	assert.Equal(t, "0", f.Original.Rows[0][0])
	assert.False(t, f.Applied[0].AppliedAt.IsZero())
}

func TestFileRegistry_DepthBound(t *testing.T) {
	r := NewFileRegistry(3)
	cur := NewTable([]string{"a"}, [][]string{{"0"}})
	r.Add("f.csv", cur)

	for i := 1; i <= 5; i++ {
		cur = step(cur, fmt.Sprint(i))
		require.NoError(t, r.Commit("f.csv", cur, AppliedTask{Task: "t"}))
	}

	f, _ := r.Get("f.csv")
	assert.Equal(t, 3, f.Summary().UndoDepth)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Undo("f.csv"))
	}
	assert.Equal(t, "2", f.Current.Rows[0][0])
	assert.ErrorIs(t, r.Undo("f.csv"), ErrNothingToUndo)
}

func TestFileRegistry_Reset(t *testing.T) {
	r := NewFileRegistry(10)
	orig := NewTable([]string{"a"}, [][]string{{"0"}})
	r.Add("f.csv", orig)
	require.NoError(t, r.Commit("f.csv", step(orig, "1"), AppliedTask{Task: "one"}))

	require.NoError(t, r.Reset("f.csv"))
	f, _ := r.Get("f.csv")
	assert.True(t, f.Current.Equal(orig))
	sum := f.Summary()
	assert.Empty(t, sum.Applied)
	assert.False(t, sum.CanUndo)
	assert.False(t, sum.CanRedo)
}

func TestFileRegistry_UnknownFile(t *testing.T) {
	r := NewFileRegistry(0)
	for _, err := range []error{
		r.Undo("x"), r.Redo("x"), r.Reset("x"), r.Remove("x"),
		r.Commit("x", NewTable(nil, nil), AppliedTask{}),
	} {
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.Equal(t, "FILE006", MapError(err).Code)
	}
}

func TestFileRegistry_NamesSorted(t *testing.T) {
	r := NewFileRegistry(0)
	for _, n := range []string{"b.csv", "a.csv", "c.txt"} {
		r.Add(n, NewTable([]string{"x"}, nil))
	}
	assert.Equal(t, []string{"a.csv", "b.csv", "c.txt"}, r.Names())
	require.NoError(t, r.Remove("b.csv"))
	assert.Equal(t, 2, r.Len())
	r.Clear()
	assert.Equal(t, 0, r.Len())
}
