package web

// handlers_common.go holds request parsing and response helpers shared by
// the handlers.

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/go-chi/render"
)

// maxJSONBody caps request bodies other than file uploads (1MB).
const maxJSONBody = 1 << 20

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseList collects a repeated or comma-separated query parameter.
func parseList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseTimeParam accepts RFC 3339 or a plain date.
func parseTimeParam(r *http.Request, name string, endOfDay bool) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid request: %s must be a date or RFC 3339 time", name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// decodeJSON reads a JSON body into v and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("invalid request: empty body")
		}
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := core.ValidateStruct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// readOptions builds reader options from form or JSON fields.
func readOptions(encoding, delimiter, noHeader string) (core.ReadOptions, error) {
	opts := core.ReadOptions{Encoding: encoding}
	if delimiter != "" {
		d, err := core.ParseDelimiter(delimiter)
		if err != nil {
			return opts, fmt.Errorf("invalid request: %w", err)
		}
		opts.Delimiter = d
	}
	if noHeader != "" {
		b, err := strconv.ParseBool(noHeader)
		if err != nil {
			return opts, fmt.Errorf("invalid request: no_header must be true or false")
		}
		opts.NoHeader = b
	}
	return opts, nil
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// attachment sets download headers.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
}

// hostOf strips the port from a host:port address.
func hostOf(addr string) (string, bool) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "", false
	}
	return host, true
}

// handleUploadQueueStatus returns the current state of the upload limiter.
// Used for monitoring and to check if the system can accept more uploads.
func (s *Server) handleUploadQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Limiter().Status())
}
