package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAudit(capacity int) (*AuditService, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	a := NewAuditService(capacity)
	a.now = clock.now
	return a, clock
}

func TestAuditService_LogCapturesClient(t *testing.T) {
	a, _ := newTestAudit(0)
	ctx := ContextWithClient(context.Background(), "10.0.0.7", "curl/8.0")

	e := a.Log(ctx, AuditLogParams{Action: ActionApply, SessionID: "s1", File: "ctd.csv", Task: "clean_headers", RowsAffected: 12})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, SeverityMedium, e.Severity)
	assert.Equal(t, "10.0.0.7", e.IPAddress)
	assert.Equal(t, "curl/8.0", e.UserAgent)
	assert.False(t, e.Failed)

	got, err := a.GetByID(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = a.GetByID("missing")
	assert.ErrorIs(t, err, ErrAuditEntryNotFound)
}

func TestAuditService_FailureKeepsError(t *testing.T) {
	a, _ := newTestAudit(0)
	e := a.Log(context.Background(), AuditLogParams{Action: ActionUpload, Err: errors.New("empty file")})

	assert.True(t, e.Failed)
	assert.Equal(t, "empty file", e.Detail)
}

func TestDetermineSeverity(t *testing.T) {
	tests := map[AuditAction]AuditSeverity{
		ActionPublish:       SeverityCritical,
		ActionReset:         SeverityHigh,
		ActionRemove:        SeverityHigh,
		ActionSessionDelete: SeverityHigh,
		ActionUndo:          SeverityLow,
		ActionRedo:          SeverityLow,
		ActionUpload:        SeverityMedium,
		ActionRecipeReplay:  SeverityMedium,
	}
	for action, want := range tests {
		assert.Equal(t, want, determineSeverity(action), action)
	}
}

func TestAuditService_CapacityDropsOldest(t *testing.T) {
	a, _ := newTestAudit(3)
	for _, f := range []string{"a", "b", "c", "d", "e"} {
		a.Log(context.Background(), AuditLogParams{Action: ActionUpload, File: f})
	}

	res := a.GetAuditLog(AuditLogOptions{})
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "e", res.Entries[0].File)
	assert.Equal(t, "c", res.Entries[2].File)
}

func TestAuditService_FilterAndPage(t *testing.T) {
	a, clock := newTestAudit(0)
	ctx := context.Background()
	start := clock.t

	for i := 0; i < 5; i++ {
		a.Log(ctx, AuditLogParams{Action: ActionApply, SessionID: "s1"})
		clock.t = clock.t.Add(time.Minute)
	}
	a.Log(ctx, AuditLogParams{Action: ActionUndo, SessionID: "s1"})
	a.Log(ctx, AuditLogParams{Action: ActionApply, SessionID: "s2"})

	assert.Equal(t, 6, a.Count(AuditLogOptions{SessionID: "s1"}))
	assert.Equal(t, 6, a.Count(AuditLogOptions{Action: ActionApply}))
	assert.Equal(t, 2, a.Count(AuditLogOptions{Since: start.Add(5 * time.Minute)}))
	assert.Equal(t, 2, a.Count(AuditLogOptions{Until: start.Add(2 * time.Minute)}))

	page := a.GetAuditLog(AuditLogOptions{SessionID: "s1", Limit: 4})
	assert.Equal(t, 6, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Entries, 4)
	assert.Equal(t, ActionUndo, page.Entries[0].Action)

	page = a.GetAuditLog(AuditLogOptions{SessionID: "s1", Limit: 4, Offset: 4})
	assert.False(t, page.HasMore)
	assert.Len(t, page.Entries, 2)

	page = a.GetAuditLog(AuditLogOptions{Offset: 50})
	assert.NotNil(t, page.Entries)
	assert.Empty(t, page.Entries)
}

func TestAuditService_ExportOldestFirst(t *testing.T) {
	a, clock := newTestAudit(0)
	a.Log(context.Background(), AuditLogParams{Action: ActionUpload, SessionID: "s1", File: "ctd.csv", RowsAffected: 3})
	clock.t = clock.t.Add(time.Second)
	a.Log(context.Background(), AuditLogParams{Action: ActionApply, SessionID: "s1", File: "ctd.csv", Task: "sort_rows", Detail: "sorted 3 rows, by depth"})

	var buf bytes.Buffer
	require.NoError(t, a.ExportAuditLog(&buf, AuditLogOptions{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "created_at", records[0][0])
	assert.Equal(t, []string{"2024-06-01T12:00:00Z", "upload", "medium", "s1", "ctd.csv", "", "3", "false", "", "", ""}, records[1])
	assert.Equal(t, "sorted 3 rows, by depth", records[2][8])
}

func TestAuditService_PurgeOlderThan(t *testing.T) {
	a, clock := newTestAudit(0)
	a.Log(context.Background(), AuditLogParams{Action: ActionUpload, File: "old.csv"})
	clock.t = clock.t.Add(2 * time.Hour)
	a.Log(context.Background(), AuditLogParams{Action: ActionUpload, File: "new.csv"})

	assert.Equal(t, 1, a.PurgeOlderThan(time.Hour))
	res := a.GetAuditLog(AuditLogOptions{})
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "new.csv", res.Entries[0].File)
}
