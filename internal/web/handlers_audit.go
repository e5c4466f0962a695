package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/logging"
	"github.com/go-chi/chi/v5"
)

// auditOptions reads audit filters and pagination from the query.
func auditOptions(r *http.Request) (core.AuditLogOptions, error) {
	q := r.URL.Query()
	opts := core.AuditLogOptions{
		SessionID: q.Get("session"),
		Action:    core.AuditAction(q.Get("action")),
		File:      q.Get("file"),
		Limit:     parseIntParam(r, "limit", core.DefaultAuditPageSize),
		Offset:    parseIntParam(r, "offset", 0),
	}

	var err error
	if opts.Since, err = parseTimeParam(r, "from", false); err != nil {
		return opts, err
	}
	if opts.Until, err = parseTimeParam(r, "to", true); err != nil {
		return opts, err
	}
	return opts, nil
}

// handleAuditLog returns a filtered page of the audit log, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	opts, err := auditOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.service.Audit().GetAuditLog(opts))
}

// handleSessionAudit returns the audit log of one session.
func (s *Server) handleSessionAudit(w http.ResponseWriter, r *http.Request) {
	opts, err := auditOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts.SessionID = chi.URLParam(r, "sessionID")
	writeJSON(w, r, http.StatusOK, s.service.Audit().GetAuditLog(opts))
}

// handleAuditLogEntry returns a single audit entry.
func (s *Server) handleAuditLogEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.service.Audit().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// handleAuditLogExport streams matching entries as CSV, oldest first.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	opts, err := auditOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("audit_log_%s.csv", time.Now().Format("20060102_150405"))
	attachment(w, "text/csv; charset=utf-8", filename)

	// Headers are sent; a failure here can only be logged.
	if err := s.service.Audit().ExportAuditLog(w, opts); err != nil && r.Context().Err() == nil {
		logging.FromContext(r.Context()).Error("audit export failed", "error", err)
	}
}
