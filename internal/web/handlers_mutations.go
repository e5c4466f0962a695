package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/publish"
	"github.com/JonMunkholm/tidycsv/internal/recipe"
	"github.com/go-chi/chi/v5"
)

// applyRequest is the body of POST /apply.
type applyRequest struct {
	Task   string         `json:"task" validate:"required"`
	Files  []string       `json:"files" validate:"required,min=1,dive,required"`
	Params map[string]any `json:"params"`
}

// handleApply runs one task on the named files.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	out, err := s.service.Apply(r.Context(), chi.URLParam(r, "sessionID"), req.Task, req.Files, req.Params)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

type historyOp func(ctx context.Context, sessionID, name string) (core.FileSummary, error)

// historyHandler adapts Undo, Redo and Reset to a handler.
func (s *Server) historyHandler(op historyOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := op(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "file"))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, sum)
	}
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.historyHandler(s.service.Undo)(w, r)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.historyHandler(s.service.Redo)(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.historyHandler(s.service.Reset)(w, r)
}

// handleRemoveFile drops a file and its history from the session.
func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Remove(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "file")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// replayResponse reports every step applied by a recipe replay.
type replayResponse struct {
	Recipe   string              `json:"recipe"`
	Outcomes []core.ApplyOutcome `json:"outcomes"`
}

// handleApplyRecipe replays a recipe onto session files.
//
// The recipe is either the request body (YAML or JSON) or a saved recipe
// named by ?recipe=<id>. ?files= selects targets; default is every file.
func (s *Server) handleApplyRecipe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rec, err := s.requestRecipe(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	files := parseList(r, "files")
	if len(files) == 0 {
		summaries, err := s.service.Files(sessionID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		for _, f := range summaries {
			files = append(files, f.Name)
		}
	}

	outcomes, err := s.service.ApplyRecipe(r.Context(), sessionID, rec, files)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if outcomes == nil {
		outcomes = []core.ApplyOutcome{}
	}
	writeJSON(w, r, http.StatusOK, replayResponse{Recipe: rec.Name, Outcomes: outcomes})
}

// requestRecipe loads a saved recipe by ID or decodes one from the body.
func (s *Server) requestRecipe(w http.ResponseWriter, r *http.Request) (core.Recipe, error) {
	if id := r.URL.Query().Get("recipe"); id != "" {
		return s.service.GetRecipe(id)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return core.Recipe{}, fmt.Errorf("invalid request: %w", err)
	}
	return recipe.Decode(data, recipe.FormatForContentType(r.Header.Get("Content-Type")))
}

// handlePublish copies a file into the configured database.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	name := chi.URLParam(r, "file")

	var req publish.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	snap, err := s.service.Snapshot(sessionID, name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.publisher.Publish(r.Context(), name, snap.Table, req)
	entry := core.AuditLogParams{
		Action:    core.ActionPublish,
		SessionID: sessionID,
		File:      name,
		Err:       err,
	}
	if err == nil {
		entry.RowsAffected = int(res.Rows)
		entry.Detail = fmt.Sprintf("%s.%s (%s)", res.Schema, res.Table, res.Mode)
	}
	s.service.Audit().Log(r.Context(), entry)

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
