package web

import (
	"net/http"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/go-chi/chi/v5"
)

// healthResponse is served by /healthz.
type healthResponse struct {
	Status     string                   `json:"status"`
	Sessions   int                      `json:"sessions"`
	Tasks      int                      `json:"tasks"`
	Uploads    core.UploadLimiterStatus `json:"uploads"`
	Publishing bool                     `json:"publishing"`
}

// handleHealth reports liveness and current load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:     "ok",
		Sessions:   s.service.SessionCount(),
		Tasks:      core.TaskCount(),
		Uploads:    s.service.Limiter().Status(),
		Publishing: s.publisher != nil,
	})
}

// handleListTasks lists registered tasks; ?group= filters to one menu group.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		writeJSON(w, r, http.StatusOK, s.service.ListTasks())
		return
	}

	tasks := s.service.ListTasksByGroup()[group]
	if tasks == nil {
		tasks = []core.TaskInfo{}
	}
	writeJSON(w, r, http.StatusOK, tasks)
}

// handleCreateSession starts an empty workspace.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.service.CreateSession()
	writeJSON(w, r, http.StatusCreated, sess.Info())
}

// handleGetSession returns a session and its files.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sess.Info())
}

// handleDeleteSession drops a session and every file in it.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListFiles lists session files with their history depth.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.Files(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, files)
}
