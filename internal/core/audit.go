package core

import (
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionUpload        AuditAction = "upload"
	ActionFetch         AuditAction = "fetch"
	ActionApply         AuditAction = "apply"
	ActionUndo          AuditAction = "undo"
	ActionRedo          AuditAction = "redo"
	ActionReset         AuditAction = "reset"
	ActionRemove        AuditAction = "remove"
	ActionRecipeReplay  AuditAction = "recipe_replay"
	ActionPublish       AuditAction = "publish"
	ActionSessionDelete AuditAction = "session_delete"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	SessionID    string        `json:"sessionId"`
	File         string        `json:"file,omitempty"`
	Task         string        `json:"task,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	Failed       bool          `json:"failed,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
// Client IP and user agent are taken from the request context.
type AuditLogParams struct {
	Action       AuditAction
	SessionID    string
	File         string
	Task         string
	RowsAffected int
	Detail       string
	Err          error
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionPublish:
		return SeverityCritical
	case ActionReset, ActionRemove, ActionSessionDelete:
		return SeverityHigh
	case ActionUndo, ActionRedo:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
