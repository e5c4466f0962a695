package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMergedName is the file a multi-file task writes to when no output is given.
const DefaultMergedName = "merged.csv"

// ServiceConfig holds the limits applied by the workspace service.
// Zero values fall back to defaults.
type ServiceConfig struct {
	SessionTTL           time.Duration
	HistoryDepth         int
	MaxFilesPerSession   int
	MaxUploadBytes       int64
	MaxConcurrentUploads int
	UploadMaxWait        time.Duration
	FetchTimeout         time.Duration
	ApplyTimeout         time.Duration
	AuditCapacity        int
	AuditRetention       time.Duration
}

// Observer receives service events. internal/metrics implements it.
type Observer interface {
	TaskApplied(task string, d time.Duration, err error)
	FileLoaded(source string, rows int, err error)
	SessionsActive(n int)
}

type nopObserver struct{}

func (nopObserver) TaskApplied(string, time.Duration, error) {}
func (nopObserver) FileLoaded(string, int, error)            {}
func (nopObserver) SessionsActive(int)                       {}

// Service provides the workspace operations used by the HTTP API and the CLI.
type Service struct {
	cfg      ServiceConfig
	limiter  *UploadLimiter
	recipes  *RecipeStore
	audit    *AuditService
	client   *http.Client
	observer Observer
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a new Service instance.
func NewService(cfg ServiceConfig) *Service {
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = DefaultHistoryDepth
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}

	return &Service{
		cfg:      cfg,
		limiter:  NewUploadLimiter(cfg.MaxConcurrentUploads, cfg.UploadMaxWait),
		recipes:  NewRecipeStore(),
		audit:    NewAuditService(cfg.AuditCapacity),
		client:   &http.Client{},
		observer: nopObserver{},
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetObserver installs o to receive task and upload events.
func (s *Service) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// SetHTTPClient replaces the client used by FetchRemote.
func (s *Service) SetHTTPClient(c *http.Client) {
	s.client = c
}

// Limiter returns the upload limiter, for status reporting.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// Audit returns the audit trail of workspace actions.
func (s *Service) Audit() *AuditService {
	return s.audit
}

// ListTasks returns information about all registered tasks.
func (s *Service) ListTasks() []TaskInfo {
	defs := All()
	infos := make([]TaskInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// ListTasksByGroup returns tasks organized by group.
func (s *Service) ListTasksByGroup() map[string][]TaskInfo {
	result := make(map[string][]TaskInfo)
	for _, group := range Groups() {
		for _, def := range ByGroup(group) {
			result[group] = append(result[group], def.Info)
		}
	}
	return result
}

// CreateSession starts an empty workspace.
func (s *Service) CreateSession() *Session {
	sess := newSession(uuid.New().String(), s.cfg.HistoryDepth, s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.observer.SessionsActive(n)
	slog.Info("session created", "session", sess.ID)
	return sess
}

// Session returns a session and marks it as used.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// DeleteSession drops a session and all its files.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.observer.SessionsActive(n)
	s.audit.Log(ctx, AuditLogParams{Action: ActionSessionDelete, SessionID: id})
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Upload parses r and registers it under name, replacing any file of that name.
func (s *Service) Upload(ctx context.Context, sessionID, name string, r io.Reader, opts ReadOptions) (FileSummary, error) {
	return s.load(ctx, sessionID, name, r, opts, "upload")
}

// FetchRemote downloads a CSV over HTTP(S) and registers it like an upload.
// An empty name is taken from the last URL path segment.
func (s *Service) FetchRemote(ctx context.Context, sessionID, rawURL, name string, opts ReadOptions) (FileSummary, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return FileSummary{}, fmt.Errorf("fetch failed: unsupported URL %q", rawURL)
	}
	if _, err := s.Session(sessionID); err != nil {
		return FileSummary{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FileSummary{}, fmt.Errorf("fetch failed: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return FileSummary{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FileSummary{}, fmt.Errorf("fetch failed: %s returned %s", u.Redacted(), resp.Status)
	}

	if name == "" {
		name = path.Base(u.Path)
		if name == "/" || name == "." {
			name = "remote.csv"
		}
	}
	return s.load(ctx, sessionID, name, resp.Body, opts, "fetch")
}

func (s *Service) load(ctx context.Context, sessionID, name string, r io.Reader, opts ReadOptions, source string) (FileSummary, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return FileSummary{}, fmt.Errorf("no file provided")
	}

	sess, err := s.Session(sessionID)
	if err != nil {
		return FileSummary{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return FileSummary{}, err
	}
	defer s.limiter.Release()

	if opts.MaxBytes == 0 {
		opts.MaxBytes = s.cfg.MaxUploadBytes
	}
	action := ActionUpload
	if source == "fetch" {
		action = ActionFetch
	}

	start := time.Now()
	t, err := ReadTable(r, opts)
	if err != nil {
		s.observer.FileLoaded(source, 0, err)
		s.audit.Log(ctx, AuditLogParams{Action: action, SessionID: sessionID, File: name, Err: err})
		slog.Warn("file rejected", append([]any{"session", sessionID, "file", name, "error", err}, clientAttrs(ctx)...)...)
		return FileSummary{}, fmt.Errorf("%s: %w", name, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := s.checkFileLimit(sess, name); err != nil {
		s.observer.FileLoaded(source, 0, err)
		return FileSummary{}, err
	}
	f := sess.files.Add(name, t)
	s.observer.FileLoaded(source, t.Len(), nil)
	s.audit.Log(ctx, AuditLogParams{Action: action, SessionID: sessionID, File: name, RowsAffected: t.Len()})

	slog.Info("file loaded", append([]any{
		"session", sessionID,
		"file", name,
		"source", source,
		"rows", t.Len(),
		"columns", t.Width(),
		"duration_ms", time.Since(start).Milliseconds(),
	}, clientAttrs(ctx)...)...)

	return f.Summary(), nil
}

// checkFileLimit fails when adding name would exceed the per-session limit.
// Replacing an existing file is always allowed. Caller holds sess.mu.
func (s *Service) checkFileLimit(sess *Session, name string) error {
	if s.cfg.MaxFilesPerSession <= 0 {
		return nil
	}
	if _, err := sess.files.Get(name); err == nil {
		return nil
	}
	if sess.files.Len() >= s.cfg.MaxFilesPerSession {
		return fmt.Errorf("too many files: session holds at most %d", s.cfg.MaxFilesPerSession)
	}
	return nil
}

// Apply runs a task and commits its result to the file history.
// Single-file tasks take exactly one file and replace its current table.
// Multi-file tasks take two or more files and write to Result.Output
// (default merged.csv). A failed task leaves every file untouched.
func (s *Service) Apply(ctx context.Context, sessionID, taskKey string, files []string, raw map[string]any) (ApplyOutcome, error) {
	def, ok := Get(taskKey)
	if !ok {
		return ApplyOutcome{}, fmt.Errorf("unknown task: %s", taskKey)
	}
	params, err := DecodeParams(def, raw)
	if err != nil {
		return ApplyOutcome{}, err
	}

	sess, err := s.Session(sessionID)
	if err != nil {
		return ApplyOutcome{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	inputs, err := gatherInputs(sess.files, def, files)
	if err != nil {
		return ApplyOutcome{}, err
	}

	if s.cfg.ApplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ApplyTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := def.Apply(ctx, inputs, params)
	if err == nil && res.Table == nil {
		err = fmt.Errorf("task produced no table")
	}
	elapsed := time.Since(start)
	s.observer.TaskApplied(taskKey, elapsed, err)
	if err != nil {
		s.audit.Log(ctx, AuditLogParams{
			Action: ActionApply, SessionID: sessionID, File: strings.Join(files, ","), Task: taskKey, Err: err,
		})
		slog.Warn("task failed", append([]any{
			"session", sessionID, "task", taskKey, "files", files, "error", err,
		}, clientAttrs(ctx)...)...)
		return ApplyOutcome{}, fmt.Errorf("%s: %w", taskKey, err)
	}

	applied := AppliedTask{
		Task:      taskKey,
		Params:    ParamsMap(params),
		Summary:   res.Summary,
		AppliedAt: s.now(),
	}

	target := inputs[0].Name
	if def.Info.Arity == ArityMulti {
		target = res.Output
		if target == "" {
			target = DefaultMergedName
		}
		applied.Files = inputNames(inputs)
		if err := s.writeOutput(sess, target, res.Table, applied); err != nil {
			return ApplyOutcome{}, err
		}
	} else if err := sess.files.Commit(target, res.Table, applied); err != nil {
		return ApplyOutcome{}, err
	}

	s.audit.Log(ctx, AuditLogParams{
		Action:       ActionApply,
		SessionID:    sessionID,
		File:         target,
		Task:         taskKey,
		RowsAffected: res.Table.Len(),
		Detail:       res.Summary,
	})
	slog.Info("task applied", append([]any{
		"session", sessionID,
		"task", taskKey,
		"file", target,
		"rows", res.Table.Len(),
		"columns", res.Table.Width(),
		"warnings", len(res.Warnings),
		"duration_ms", elapsed.Milliseconds(),
	}, clientAttrs(ctx)...)...)

	return ApplyOutcome{
		File:     target,
		Summary:  res.Summary,
		Warnings: res.Warnings,
		Metadata: res.Metadata,
		Rows:     res.Table.Len(),
		Columns:  res.Table.Width(),
		Duration: elapsed,
	}, nil
}

// writeOutput stores the result of a multi-file task. An existing output file
// gets a normal undoable commit; a new one starts with the task as its origin.
func (s *Service) writeOutput(sess *Session, name string, t *Table, applied AppliedTask) error {
	if _, err := sess.files.Get(name); err == nil {
		return sess.files.Commit(name, t, applied)
	}
	if err := s.checkFileLimit(sess, name); err != nil {
		return err
	}
	f := sess.files.Add(name, t)
	f.Applied = []AppliedTask{applied}
	return nil
}

func gatherInputs(files *FileRegistry, def TaskDefinition, names []string) (Inputs, error) {
	switch def.Info.Arity {
	case ArityMulti:
		if len(names) < 2 {
			return nil, fmt.Errorf("%s requires at least two files, got %d", def.Info.Key, len(names))
		}
	default:
		if len(names) != 1 {
			return nil, fmt.Errorf("%s requires exactly one file, got %d", def.Info.Key, len(names))
		}
	}

	inputs := make(Inputs, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("%s requires distinct files, %s listed twice", def.Info.Key, n)
		}
		seen[n] = true

		f, err := files.Get(n)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, NamedTable{Name: n, Table: f.Current})
	}
	return inputs, nil
}

func inputNames(in Inputs) []string {
	names := make([]string, len(in))
	for i, nt := range in {
		names[i] = nt.Name
	}
	return names
}

// Undo steps a file back one task.
func (s *Service) Undo(ctx context.Context, sessionID, name string) (FileSummary, error) {
	return s.mutate(ctx, sessionID, name, ActionUndo, (*FileRegistry).Undo)
}

// Redo re-applies the last undone task.
func (s *Service) Redo(ctx context.Context, sessionID, name string) (FileSummary, error) {
	return s.mutate(ctx, sessionID, name, ActionRedo, (*FileRegistry).Redo)
}

// Reset returns a file to its uploaded state.
func (s *Service) Reset(ctx context.Context, sessionID, name string) (FileSummary, error) {
	return s.mutate(ctx, sessionID, name, ActionReset, (*FileRegistry).Reset)
}

func (s *Service) mutate(ctx context.Context, sessionID, name string, op AuditAction, fn func(*FileRegistry, string) error) (FileSummary, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return FileSummary{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(sess.files, name); err != nil {
		return FileSummary{}, err
	}
	f, err := sess.files.Get(name)
	if err != nil {
		return FileSummary{}, err
	}
	s.audit.Log(ctx, AuditLogParams{Action: op, SessionID: sessionID, File: name, RowsAffected: f.Current.Len()})
	slog.Debug("history changed", "session", sessionID, "file", name, "op", op)
	return f.Summary(), nil
}

// Remove deletes a file from a session.
func (s *Service) Remove(ctx context.Context, sessionID, name string) error {
	sess, err := s.Session(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.files.Remove(name); err != nil {
		return err
	}
	s.audit.Log(ctx, AuditLogParams{Action: ActionRemove, SessionID: sessionID, File: name})
	return nil
}

// Files lists the files of a session.
func (s *Service) Files(sessionID string) ([]FileSummary, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Info().Files, nil
}

// FileSnapshot is a copy of a file's current table with its history view.
type FileSnapshot struct {
	FileSummary
	Table *Table `json:"table"`
}

// Snapshot returns a copy of the current table of a file.
func (s *Service) Snapshot(sessionID, name string) (FileSnapshot, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return FileSnapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	f, err := sess.files.Get(name)
	if err != nil {
		return FileSnapshot{}, err
	}
	return FileSnapshot{FileSummary: f.Summary(), Table: f.Current.Clone()}, nil
}

// Tables returns copies of the named files, or of every file when names is empty.
func (s *Service) Tables(sessionID string, names []string) ([]NamedTable, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(names) == 0 {
		names = sess.files.Names()
	}
	out := make([]NamedTable, 0, len(names))
	for _, n := range names {
		f, err := sess.files.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedTable{Name: n, Table: f.Current.Clone()})
	}
	return out, nil
}

// ExportRecipe captures the applied history of a file as a replayable recipe.
func (s *Service) ExportRecipe(sessionID, name string) (Recipe, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return Recipe{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	f, err := sess.files.Get(name)
	if err != nil {
		return Recipe{}, err
	}
	return RecipeFromHistory(strings.TrimSuffix(name, filepath.Ext(name)), f.Original.Columns, f.Applied), nil
}

// ApplyRecipe replays rec onto files in order.
//
// Single-file steps run on every target file. Multi-file steps use the step's
// own file list, or all targets when it has none, and their output becomes
// the only target for the steps that follow. Replay stops at the first
// failing step; steps already applied stay in history and can be undone.
func (s *Service) ApplyRecipe(ctx context.Context, sessionID string, rec Recipe, files []string) ([]ApplyOutcome, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("invalid recipe: no target files")
	}

	s.audit.Log(ctx, AuditLogParams{
		Action:    ActionRecipeReplay,
		SessionID: sessionID,
		File:      strings.Join(files, ","),
		Detail:    fmt.Sprintf("%s (%d steps)", rec.Name, len(rec.Steps)),
	})

	targets := files
	var outcomes []ApplyOutcome
	for i, step := range rec.Steps {
		def, _ := Get(step.Task)

		if def.Info.Arity == ArityMulti {
			in := step.Files
			if len(in) == 0 {
				in = targets
			}
			out, err := s.Apply(ctx, sessionID, step.Task, in, step.Params)
			if err != nil {
				return outcomes, fmt.Errorf("recipe step %d: %w", i+1, err)
			}
			outcomes = append(outcomes, out)
			targets = []string{out.File}
			continue
		}

		for _, name := range targets {
			out, err := s.Apply(ctx, sessionID, step.Task, []string{name}, step.Params)
			if err != nil {
				return outcomes, fmt.Errorf("recipe step %d on %s: %w", i+1, name, err)
			}
			outcomes = append(outcomes, out)
		}
	}
	return outcomes, nil
}

// SaveRecipe stores a recipe for later replay.
func (s *Service) SaveRecipe(r Recipe) (Recipe, error) {
	return s.recipes.Save(r)
}

// GetRecipe returns a stored recipe.
func (s *Service) GetRecipe(id string) (Recipe, error) {
	return s.recipes.Get(id)
}

// ListRecipes returns every stored recipe.
func (s *Service) ListRecipes() []Recipe {
	return s.recipes.List()
}

// DeleteRecipe removes a stored recipe.
func (s *Service) DeleteRecipe(id string) error {
	return s.recipes.Delete(id)
}

// MatchRecipes suggests stored recipes for a file with the given headers.
func (s *Service) MatchRecipes(headers []string) []RecipeMatch {
	return s.recipes.Match(headers)
}

// Shutdown waits for in-flight uploads to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
