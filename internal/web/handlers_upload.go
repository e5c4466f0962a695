package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart form is kept in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// handleUpload loads one or more files sent as multipart "file" parts.
//
// Form fields: encoding, delimiter, no_header, and name (single file only).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// Leave room for multipart framing above the file limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, tooBig.Limit))
			return
		}
		s.respondError(w, r, fmt.Errorf("invalid request: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.respondError(w, r, errors.New("no file provided"))
		return
	}

	opts, err := readOptions(r.FormValue("encoding"), r.FormValue("delimiter"), r.FormValue("no_header"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	summaries := make([]core.FileSummary, 0, len(headers))
	for _, fh := range headers {
		name := fh.Filename
		if n := r.FormValue("name"); n != "" && len(headers) == 1 {
			name = n
		}
		sum, err := s.uploadPart(r, sessionID, name, fh, opts)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		summaries = append(summaries, sum)
	}

	writeJSON(w, r, http.StatusCreated, summaries)
}

func (s *Server) uploadPart(r *http.Request, sessionID, name string, fh *multipart.FileHeader, opts core.ReadOptions) (core.FileSummary, error) {
	f, err := fh.Open()
	if err != nil {
		return core.FileSummary{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return s.service.Upload(r.Context(), sessionID, name, f, opts)
}

// fetchRequest is the body of POST /fetch.
type fetchRequest struct {
	URL       string `json:"url" validate:"required,url"`
	Name      string `json:"name" validate:"omitempty,max=255"`
	Encoding  string `json:"encoding"`
	Delimiter string `json:"delimiter"`
	NoHeader  bool   `json:"no_header"`
}

// handleFetch downloads a remote CSV into the session.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	opts, err := readOptions(req.Encoding, req.Delimiter, "")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts.NoHeader = req.NoHeader

	sum, err := s.service.FetchRemote(r.Context(), chi.URLParam(r, "sessionID"), req.URL, req.Name, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sum)
}
