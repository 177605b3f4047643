package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/cadbridge/internal/bridge"
	"github.com/nerrad567/cadbridge/internal/infrastructure/database"
	_ "github.com/nerrad567/cadbridge/migrations" // registers embedded migrations
)

// openTestDB creates a migrated database in a temp directory.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func testEntry(i int, method string, ok bool) *Entry {
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second)
	e := &Entry{
		ID:         fmt.Sprintf("task-%02d", i),
		Method:     method,
		Succeeded:  ok,
		EnqueuedAt: base,
		StartedAt:  base.Add(time.Millisecond),
		FinishedAt: base.Add(3 * time.Millisecond),
		DurationUS: 2000,
	}
	if !ok {
		e.Message = "Box not found"
	}
	return e
}

// repositories runs fn against both repository implementations.
func repositories(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewSQLiteRepository(openTestDB(t).DB))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryRepository(100))
	})
}

func TestRepository_RecordAndList(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		for i := 0; i < 6; i++ {
			method := "create_object"
			if i%2 == 1 {
				method = "edit_object"
			}
			if err := repo.Record(ctx, testEntry(i, method, i != 3)); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
		}

		all, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if all.Total != 6 || len(all.Entries) != 6 {
			t.Fatalf("List() total=%d len=%d, want 6", all.Total, len(all.Entries))
		}
		if all.Entries[0].ID != "task-05" {
			t.Errorf("first entry = %s, want most recent task-05", all.Entries[0].ID)
		}
		if all.Limit != defaultLimit {
			t.Errorf("Limit = %d, want default %d", all.Limit, defaultLimit)
		}

		edits, err := repo.List(ctx, Filter{Method: "edit_object"})
		if err != nil {
			t.Fatalf("List(method) error = %v", err)
		}
		if edits.Total != 3 {
			t.Errorf("edit_object total = %d, want 3", edits.Total)
		}

		failed, err := repo.List(ctx, Filter{FailedOnly: true})
		if err != nil {
			t.Fatalf("List(failed) error = %v", err)
		}
		if failed.Total != 1 || failed.Entries[0].Message != "Box not found" {
			t.Errorf("failed = %+v", failed.Entries)
		}

		page, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("List(page) error = %v", err)
		}
		if len(page.Entries) != 2 || page.Entries[0].ID != "task-03" || page.Total != 6 {
			t.Errorf("page = %+v", page)
		}

		if got := all.Entries[5].FinishedAt; !got.Equal(testEntry(0, "", true).FinishedAt) {
			t.Errorf("FinishedAt round trip = %v", got)
		}
	})
}

func TestMemoryRepository_Evicts(t *testing.T) {
	repo := NewMemoryRepository(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = repo.Record(ctx, testEntry(i, "ping", true))
	}

	res, _ := repo.List(ctx, Filter{})
	if res.Total != 3 {
		t.Fatalf("Total = %d, want 3", res.Total)
	}
	if res.Entries[0].ID != "task-04" || res.Entries[2].ID != "task-02" {
		t.Errorf("entries = %s..%s, want task-04..task-02", res.Entries[0].ID, res.Entries[2].ID)
	}
}

func TestRecorder_WritesPumpRecords(t *testing.T) {
	repo := NewMemoryRepository(10)
	rec := NewRecorder(repo, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Start(ctx)

	now := time.Now()
	rec.TaskCompleted(bridge.Record{
		TaskID:     "t1",
		Method:     "create_document",
		Succeeded:  true,
		EnqueuedAt: now,
		StartedAt:  now.Add(time.Millisecond),
		FinishedAt: now.Add(5 * time.Millisecond),
	}, bridge.Success(nil))

	cancel()
	rec.Wait()

	res, _ := repo.List(context.Background(), Filter{})
	if res.Total != 1 {
		t.Fatalf("Total = %d, want 1", res.Total)
	}
	if got := res.Entries[0]; got.Method != "create_document" || got.DurationUS != 4000 {
		t.Errorf("entry = %+v", got)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	rec := NewRecorder(NewMemoryRepository(10), 1, nil)

	// Not started: the first record fills the buffer, the second is dropped.
	rec.TaskCompleted(bridge.Record{TaskID: "a"}, bridge.Outcome{})
	rec.TaskCompleted(bridge.Record{TaskID: "b"}, bridge.Outcome{})
	if rec.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", rec.Dropped())
	}
}

func TestAdminRepository(t *testing.T) {
	repo := NewSQLiteAdminRepository(openTestDB(t).DB)
	ctx := context.Background()

	first := &AdminEvent{
		Action:    ActionAllowListSet,
		Actor:     "ops",
		Source:    "api",
		Details:   map[string]any{"allowed_ips": "127.0.0.1, 10.0.0.0/8"},
		CreatedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
	second := &AdminEvent{
		Action:    ActionRemoteEnable,
		Source:    "cli",
		CreatedAt: first.CreatedAt.Add(time.Minute),
	}
	for _, ev := range []*AdminEvent{first, second} {
		if err := repo.Create(ctx, ev); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if ev.ID == "" {
			t.Error("Create() did not assign an ID")
		}
	}

	events, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 2 || events[0].Action != ActionRemoteEnable {
		t.Fatalf("Recent() = %+v", events)
	}
	if events[1].Actor != "ops" || events[1].Details["allowed_ips"] != "127.0.0.1, 10.0.0.0/8" {
		t.Errorf("first event = %+v", events[1])
	}
}
