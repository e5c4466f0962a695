package core

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrFileNotFound  = errors.New("file not found")
)

// DefaultHistoryDepth bounds the undo stack when no depth is configured.
const DefaultHistoryDepth = 50

// FileState is one uploaded file: its original table, the current table and
// the whole-table snapshots needed to undo and redo applied tasks.
type FileState struct {
	Name       string
	Original   *Table
	Current    *Table
	Applied    []AppliedTask
	UploadedAt time.Time

	undo        []*Table
	redo        []*Table
	redoApplied []AppliedTask
}

// CanUndo reports whether there is a state to go back to.
func (f *FileState) CanUndo() bool { return len(f.undo) > 0 }

// CanRedo reports whether an undone state can be restored.
func (f *FileState) CanRedo() bool { return len(f.redo) > 0 }

// FileSummary is a read-only view of a file for listings.
type FileSummary struct {
	Name       string        `json:"name"`
	Rows       int           `json:"rows"`
	Columns    int           `json:"columns"`
	Applied    []AppliedTask `json:"applied"`
	CanUndo    bool          `json:"canUndo"`
	CanRedo    bool          `json:"canRedo"`
	UndoDepth  int           `json:"undoDepth"`
	RedoDepth  int           `json:"redoDepth"`
	UploadedAt time.Time     `json:"uploadedAt"`
}

// FileRegistry maps filenames to their state. It is not safe for concurrent
// use; Session serializes access.
type FileRegistry struct {
	files    map[string]*FileState
	maxDepth int
	now      func() time.Time
}

// NewFileRegistry creates an empty registry keeping at most maxDepth snapshots per file.
func NewFileRegistry(maxDepth int) *FileRegistry {
	if maxDepth <= 0 {
		maxDepth = DefaultHistoryDepth
	}
	return &FileRegistry{
		files:    make(map[string]*FileState),
		maxDepth: maxDepth,
		now:      time.Now,
	}
}

// Add registers a freshly uploaded table, replacing any file of the same name.
func (r *FileRegistry) Add(name string, t *Table) *FileState {
	f := &FileState{
		Name:       name,
		Original:   t.Clone(),
		Current:    t.Clone(),
		UploadedAt: r.now(),
	}
	r.files[name] = f
	return f
}

// Get returns the state of a file.
func (r *FileRegistry) Get(name string) (*FileState, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return f, nil
}

// Names returns all filenames in sorted order.
func (r *FileRegistry) Names() []string {
	names := make([]string, 0, len(r.files))
	for n := range r.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of files.
func (r *FileRegistry) Len() int { return len(r.files) }

// Remove deletes a file and its history.
func (r *FileRegistry) Remove(name string) error {
	if _, ok := r.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	delete(r.files, name)
	return nil
}

// Clear drops every file.
func (r *FileRegistry) Clear() {
	r.files = make(map[string]*FileState)
}

// Commit replaces the current table of a file with next, saving a snapshot
// of the previous state for undo and invalidating redo.
func (r *FileRegistry) Commit(name string, next *Table, applied AppliedTask) error {
	f, err := r.Get(name)
	if err != nil {
		return err
	}

	f.undo = append(f.undo, f.Current.Clone())
	if len(f.undo) > r.maxDepth {
		f.undo = slices.Delete(f.undo, 0, len(f.undo)-r.maxDepth)
	}
	f.redo = nil
	f.redoApplied = nil

	if applied.AppliedAt.IsZero() {
		applied.AppliedAt = r.now()
	}
	f.Current = next.Clone()
	f.Applied = append(f.Applied, applied)
	return nil
}

// Undo restores the state before the last committed task.
func (r *FileRegistry) Undo(name string) error {
	f, err := r.Get(name)
	if err != nil {
		return err
	}
	if len(f.undo) == 0 {
		return ErrNothingToUndo
	}

	prev := f.undo[len(f.undo)-1]
	f.undo = f.undo[:len(f.undo)-1]
	f.redo = append(f.redo, f.Current)
	f.Current = prev

	if n := len(f.Applied); n > 0 {
		f.redoApplied = append(f.redoApplied, f.Applied[n-1])
		f.Applied = f.Applied[:n-1]
	}
	return nil
}

// Redo re-applies the most recently undone state.
func (r *FileRegistry) Redo(name string) error {
	f, err := r.Get(name)
	if err != nil {
		return err
	}
	if len(f.redo) == 0 {
		return ErrNothingToRedo
	}

	next := f.redo[len(f.redo)-1]
	f.redo = f.redo[:len(f.redo)-1]
	f.undo = append(f.undo, f.Current)
	f.Current = next

	if n := len(f.redoApplied); n > 0 {
		f.Applied = append(f.Applied, f.redoApplied[n-1])
		f.redoApplied = f.redoApplied[:n-1]
	}
	return nil
}

// Reset returns a file to its uploaded state and clears all history.
func (r *FileRegistry) Reset(name string) error {
	f, err := r.Get(name)
	if err != nil {
		return err
	}
	f.Current = f.Original.Clone()
	f.Applied = nil
	f.undo = nil
	f.redo = nil
	f.redoApplied = nil
	return nil
}

// Summary returns a read-only view of a file.
func (f *FileState) Summary() FileSummary {
	return FileSummary{
		Name:       f.Name,
		Rows:       f.Current.Len(),
		Columns:    f.Current.Width(),
		Applied:    slices.Clone(f.Applied),
		CanUndo:    f.CanUndo(),
		CanRedo:    f.CanRedo(),
		UndoDepth:  len(f.undo),
		RedoDepth:  len(f.redo),
		UploadedAt: f.UploadedAt,
	}
}
