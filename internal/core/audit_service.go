package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAuditCapacity is how many entries the audit log keeps before
// dropping the oldest.
const DefaultAuditCapacity = 10000

// ErrAuditEntryNotFound is returned by GetByID for unknown IDs.
var ErrAuditEntryNotFound = errors.New("audit entry not found")

// AuditService keeps a bounded in-memory trail of workspace actions.
// Entries are kept in insertion order; the oldest are dropped at capacity.
type AuditService struct {
	mu       sync.RWMutex
	entries  []AuditEntry
	capacity int
	now      func() time.Time
}

// NewAuditService creates an audit log holding at most capacity entries.
func NewAuditService(capacity int) *AuditService {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditService{capacity: capacity, now: time.Now}
}

// Log records an action and returns the stored entry.
func (a *AuditService) Log(ctx context.Context, params AuditLogParams) AuditEntry {
	entry := AuditEntry{
		ID:           uuid.New().String(),
		Action:       params.Action,
		Severity:     determineSeverity(params.Action),
		SessionID:    params.SessionID,
		File:         params.File,
		Task:         params.Task,
		IPAddress:    ClientIPFromContext(ctx),
		UserAgent:    UserAgentFromContext(ctx),
		RowsAffected: params.RowsAffected,
		Detail:       params.Detail,
		CreatedAt:    a.now(),
	}
	if params.Err != nil {
		entry.Failed = true
		entry.Detail = params.Err.Error()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, entry)
	if over := len(a.entries) - a.capacity; over > 0 {
		a.entries = append(a.entries[:0:0], a.entries[over:]...)
	}
	return entry
}

// AuditLogOptions filters and pages GetAuditLog. Zero values match everything.
type AuditLogOptions struct {
	SessionID string
	Action    AuditAction
	File      string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

func (o AuditLogOptions) matches(e AuditEntry) bool {
	switch {
	case o.SessionID != "" && e.SessionID != o.SessionID:
		return false
	case o.Action != "" && e.Action != o.Action:
		return false
	case o.File != "" && e.File != o.File:
		return false
	case !o.Since.IsZero() && e.CreatedAt.Before(o.Since):
		return false
	case !o.Until.IsZero() && !e.CreatedAt.Before(o.Until):
		return false
	}
	return true
}

// AuditLogResult is one page of audit entries.
type AuditLogResult struct {
	Entries []AuditEntry `json:"entries"`
	Total   int          `json:"total"`
	HasMore bool         `json:"hasMore"`
}

// DefaultAuditPageSize is used when AuditLogOptions.Limit is not positive.
const DefaultAuditPageSize = 100

// GetAuditLog returns matching entries, newest first.
func (a *AuditService) GetAuditLog(opts AuditLogOptions) AuditLogResult {
	if opts.Limit <= 0 {
		opts.Limit = DefaultAuditPageSize
	}
	matched := a.filter(opts)

	result := AuditLogResult{Total: len(matched), Entries: []AuditEntry{}}
	if opts.Offset >= len(matched) {
		return result
	}
	end := min(opts.Offset+opts.Limit, len(matched))
	result.Entries = matched[opts.Offset:end]
	result.HasMore = end < len(matched)
	return result
}

// filter returns a copy of matching entries, newest first.
func (a *AuditService) filter(opts AuditLogOptions) []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []AuditEntry
	for i := len(a.entries) - 1; i >= 0; i-- {
		if opts.matches(a.entries[i]) {
			out = append(out, a.entries[i])
		}
	}
	return out
}

// GetByID returns a single audit entry.
func (a *AuditService) GetByID(id string) (AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, e := range a.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return AuditEntry{}, fmt.Errorf("%w: %s", ErrAuditEntryNotFound, id)
}

// Count returns how many entries match opts, ignoring paging.
func (a *AuditService) Count(opts AuditLogOptions) int {
	return len(a.filter(opts))
}

// ExportAuditLog writes matching entries as CSV, oldest first.
func (a *AuditService) ExportAuditLog(w io.Writer, opts AuditLogOptions) error {
	entries := a.filter(opts)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"created_at", "action", "severity", "session_id", "file", "task",
		"rows_affected", "failed", "detail", "ip_address", "user_agent",
	}); err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := cw.Write([]string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			string(e.Severity),
			e.SessionID,
			e.File,
			e.Task,
			strconv.Itoa(e.RowsAffected),
			strconv.FormatBool(e.Failed),
			e.Detail,
			e.IPAddress,
			e.UserAgent,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PurgeOlderThan drops entries older than age and returns how many were removed.
func (a *AuditService) PurgeOlderThan(age time.Duration) int {
	cutoff := a.now().Add(-age)

	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.entries[:0]
	for _, e := range a.entries {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	purged := len(a.entries) - len(kept)
	a.entries = kept
	return purged
}
