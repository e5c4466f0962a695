package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/exporter"
	"github.com/JonMunkholm/tidycsv/internal/recipe"
	"github.com/JonMunkholm/tidycsv/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// maxSnapshotRows caps ?limit on snapshot and preview requests.
const maxSnapshotRows = 5000

// defaultValidationErrors is how many cell errors /validate reports by default.
const defaultValidationErrors = 100

// snapshotResponse is the JSON view of one file.
type snapshotResponse struct {
	File    core.FileSummary `json:"file"`
	Preview core.Preview     `json:"preview"`
}

func previewLimit(r *http.Request) int {
	return min(parseIntParam(r, "limit", core.DefaultPreviewRows), maxSnapshotRows)
}

// handleSnapshot returns the head of a file, its column kinds and history.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	snap, err := s.service.Snapshot(chi.URLParam(r, "sessionID"), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, snapshotResponse{
		File:    snap.FileSummary,
		Preview: core.BuildPreview(name, snap.Table, previewLimit(r)),
	})
}

// handlePreview renders the head of a file as an HTML fragment.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Preview(chi.URLParam(r, "sessionID"), chi.URLParam(r, "file"), previewLimit(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.PreviewTable(p).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}

// handleValidate checks cells against their column kinds.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot(chi.URLParam(r, "sessionID"), chi.URLParam(r, "file"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, core.ValidateTable(snap.Table, parseIntParam(r, "limit", defaultValidationErrors)))
}

// handleExportRecipe returns the applied history of a file as a recipe.
// YAML by default; ?format=json for JSON, ?download=true for an attachment.
func (s *Server) handleExportRecipe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	rec, err := s.service.ExportRecipe(chi.URLParam(r, "sessionID"), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	f := recipe.FormatYAML
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		f = recipe.FormatJSON
	}

	var buf bytes.Buffer
	if err := recipe.Encode(&buf, rec, f); err != nil {
		s.respondError(w, r, err)
		return
	}

	if r.URL.Query().Get("download") == "true" {
		attachment(w, f.ContentType(), rec.Name+".recipe."+string(f))
	} else {
		w.Header().Set("Content-Type", f.ContentType())
	}
	w.Write(buf.Bytes())
}

// handleDownload exports session files.
//
// Query: format=csv|xlsx|zip, file (repeatable; default all files),
// inner=csv|xlsx for zip entries, delimiter, bom=true.
// csv exports exactly one file; xlsx puts each file on its own sheet; zip
// bundles every file with its recipe.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	q := r.URL.Query()

	format, err := exporter.ParseFormat(q.Get("format"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("invalid request: %w", err))
		return
	}
	opts, err := csvOptions(q.Get("delimiter"), q.Get("bom"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	tables, err := s.service.Tables(sessionID, parseList(r, "file"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(tables) == 0 {
		s.respondError(w, r, fmt.Errorf("invalid request: %w", exporter.ErrNoTables))
		return
	}

	var buf bytes.Buffer
	filename := exporter.FileName("tidycsv", format)

	switch format {
	case exporter.FormatCSV:
		if len(tables) != 1 {
			s.respondError(w, r, fmt.Errorf("invalid request: csv export takes one file, got %d; use format=zip", len(tables)))
			return
		}
		filename = exporter.FileName(tables[0].Name, format)
		err = exporter.WriteCSV(&buf, tables[0].Table, opts)

	case exporter.FormatXLSX:
		if len(tables) == 1 {
			filename = exporter.FileName(tables[0].Name, format)
		}
		err = exporter.WriteXLSX(&buf, tables)

	case exporter.FormatZIP:
		inner, perr := exporter.ParseFormat(q.Get("inner"))
		if perr == nil && inner == exporter.FormatZIP {
			perr = fmt.Errorf("zip entries must be csv or xlsx")
		}
		if perr != nil {
			s.respondError(w, r, fmt.Errorf("invalid request: %w", perr))
			return
		}
		var files []exporter.BundleFile
		files, err = s.bundle(sessionID, tables)
		if err == nil {
			err = exporter.WriteZIP(&buf, files, inner, opts)
		}
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	attachment(w, exporter.ContentType(format), filename)
	w.Write(buf.Bytes())
}

// bundle pairs each table with the YAML recipe of its history, if any.
func (s *Server) bundle(sessionID string, tables []core.NamedTable) ([]exporter.BundleFile, error) {
	files := make([]exporter.BundleFile, 0, len(tables))
	for _, t := range tables {
		bf := exporter.BundleFile{Name: t.Name, Table: t.Table}

		rec, err := s.service.ExportRecipe(sessionID, t.Name)
		if err != nil {
			return nil, err
		}
		if len(rec.Steps) > 0 {
			if bf.Recipe, err = recipe.Marshal(rec); err != nil {
				return nil, err
			}
		}
		files = append(files, bf)
	}
	return files, nil
}

func csvOptions(delimiter, bom string) (exporter.CSVOptions, error) {
	var opts exporter.CSVOptions
	if delimiter != "" {
		d, err := core.ParseDelimiter(delimiter)
		if err != nil {
			return opts, fmt.Errorf("invalid request: %w", err)
		}
		opts.Delimiter = d
	}
	opts.BOMPrefix = bom == "true" || bom == "1"
	return opts, nil
}
