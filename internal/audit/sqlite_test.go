package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nubi-io/nubi/internal/model"
)

func newTestTrail(t *testing.T) *Trail {
	t.Helper()
	trail, err := Open(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { trail.Close() })
	return trail
}

func TestRecordAndGetEntry(t *testing.T) {
	trail := newTestTrail(t)

	entry := model.AuditEntry{
		ID:         "audit-1",
		Timestamp:  time.Now().UTC().Truncate(time.Second),
		Action:     model.AuditCreate,
		EntityKind: "host",
		EntityID:   "host-1",
		AfterJSON:  `{"domain":"example.com"}`,
	}
	if err := trail.Record(entry); err != nil {
		t.Fatal(err)
	}

	got, err := trail.GetEntry(context.Background(), "audit-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected entry to be found")
	}
	if got.EntityID != "host-1" || got.Action != model.AuditCreate {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestGetEntryMissingReturnsNil(t *testing.T) {
	trail := newTestTrail(t)
	got, err := trail.GetEntry(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil for a missing entry")
	}
}

func TestListEntriesFiltersAndCounts(t *testing.T) {
	trail := newTestTrail(t)
	base := time.Now().UTC().Truncate(time.Second)

	entries := []model.AuditEntry{
		{ID: "1", Timestamp: base, Action: model.AuditCreate, EntityKind: "host", EntityID: "host-1"},
		{ID: "2", Timestamp: base.Add(time.Second), Action: model.AuditUpdate, EntityKind: "host", EntityID: "host-1"},
		{ID: "3", Timestamp: base.Add(2 * time.Second), Action: model.AuditCreate, EntityKind: "certificate", EntityID: "cert-1"},
	}
	for _, e := range entries {
		if err := trail.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	hostEntries, total, err := trail.ListEntries(context.Background(), ListOptions{EntityKind: "host"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(hostEntries) != 2 {
		t.Fatalf("expected 2 host entries, got total=%d len=%d", total, len(hostEntries))
	}
	// newest first
	if hostEntries[0].ID != "2" {
		t.Errorf("expected newest-first ordering, got first id %q", hostEntries[0].ID)
	}

	createOnly, total, err := trail.ListEntries(context.Background(), ListOptions{Action: model.AuditCreate})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(createOnly) != 2 {
		t.Fatalf("expected 2 create entries, got total=%d len=%d", total, len(createOnly))
	}
}

func TestListEntriesRespectsLimit(t *testing.T) {
	trail := newTestTrail(t)
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		err := trail.Record(model.AuditEntry{
			ID:         itoa(i),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Action:     model.AuditUpdate,
			EntityKind: "host",
			EntityID:   "host-1",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := trail.ListEntries(context.Background(), ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("expected total of 5 regardless of limit, got %d", total)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}
