package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/albumdrop/internal/models"
	"github.com/desertthunder/albumdrop/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newTestBatch(status models.BatchStatus) *models.Batch {
	b := models.NewBatch("cover.png", status)
	finished := b.StartedAt.Add(2 * time.Second)
	b.FinishedAt = &finished
	b.CoverURL = "http://127.0.0.1:3000/upload/cover"
	b.AudioURL = "http://127.0.0.1:3000/upload/audio"
	b.Items = []models.BatchItem{
		{Position: 0, FileName: "01.mp3", FileSize: 1024, MIMEType: "audio/mpeg", Status: models.StatusSuccess, Progress: 100, Response: `{"id":"a"}`},
		{Position: 1, FileName: "02.mp3", FileSize: 2048, MIMEType: "audio/mpeg", Status: models.StatusError, Progress: 40, Error: "Payload Too Large"},
	}
	b.SuccessCount = 1
	b.FailedCount = 1
	return b
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "batches")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestBatchRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		batch := newTestBatch(models.BatchCompleted)

		if err := repo.Create(batch); err != nil {
			t.Fatalf("failed to create batch: %v", err)
		}
		if batch.ID() == "" {
			t.Error("batch ID should be set after creation")
		}
		if batch.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", batch.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		batch := newTestBatch(models.BatchCompleted)
		if err := repo.Create(batch); err != nil {
			t.Fatalf("failed to create batch: %v", err)
		}

		retrieved, err := repo.Get(batch.ID())
		if err != nil {
			t.Fatalf("failed to get batch: %v", err)
		}

		if retrieved.CoverName != "cover.png" || retrieved.Status != models.BatchCompleted {
			t.Errorf("unexpected batch: %+v", retrieved)
		}
		if retrieved.CoverURL != batch.CoverURL || retrieved.AudioURL != batch.AudioURL {
			t.Errorf("expected endpoints to round trip, got %s %s", retrieved.CoverURL, retrieved.AudioURL)
		}
		if retrieved.FinishedAt == nil || retrieved.Duration() != 2*time.Second {
			t.Errorf("expected 2s duration, got %v", retrieved.Duration())
		}
		if len(retrieved.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(retrieved.Items))
		}
		if retrieved.Items[1].Error != "Payload Too Large" || retrieved.Items[1].Status != models.StatusError {
			t.Errorf("unexpected item: %+v", retrieved.Items[1])
		}
		if retrieved.Items[0].Response != `{"id":"a"}` {
			t.Errorf("expected response to round trip, got %q", retrieved.Items[0].Response)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		batch := newTestBatch(models.BatchCompleted)
		if err := repo.Create(batch); err != nil {
			t.Fatalf("failed to create batch: %v", err)
		}

		batch.Status = models.BatchCancelled
		batch.Items = batch.Items[:1]
		batch.Error = "cancelled"
		if err := repo.Update(batch); err != nil {
			t.Fatalf("failed to update batch: %v", err)
		}

		retrieved, err := repo.Get(batch.ID())
		if err != nil {
			t.Fatalf("failed to get batch: %v", err)
		}
		if retrieved.Status != models.BatchCancelled || retrieved.Error != "cancelled" {
			t.Errorf("expected updated outcome, got %+v", retrieved)
		}
		if len(retrieved.Items) != 1 {
			t.Errorf("expected items to be replaced, got %d", len(retrieved.Items))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		batch := newTestBatch(models.BatchCompleted)
		if err := repo.Create(batch); err != nil {
			t.Fatalf("failed to create batch: %v", err)
		}

		if err := repo.Delete(batch.ID()); err != nil {
			t.Fatalf("failed to delete batch: %v", err)
		}
		if _, err := repo.Get(batch.ID()); !errors.Is(err, shared.ErrBatchNotFound) {
			t.Errorf("expected ErrBatchNotFound after delete, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewBatchRepository(db)
		for _, status := range []models.BatchStatus{models.BatchCompleted, models.BatchFailed, models.BatchCompleted} {
			b := newTestBatch(status)
			if status == models.BatchFailed {
				b.Items = nil
			}
			if err := repo.Create(b); err != nil {
				t.Fatalf("failed to create batch: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list batches: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(all))
		}
		if all[0].Sequence() != 3 {
			t.Errorf("expected newest first, got sequence %d", all[0].Sequence())
		}

		completed, err := repo.List(map[string]any{"status": "completed"})
		if err != nil {
			t.Fatalf("failed to list batches: %v", err)
		}
		if len(completed) != 2 {
			t.Errorf("expected 2 completed batches, got %d", len(completed))
		}

		limited, err := repo.List(map[string]any{"limit": 1})
		if err != nil {
			t.Fatalf("failed to list batches: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected 1 batch, got %d", len(limited))
		}
	})
}

func TestBatchRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			batch := newTestBatch(models.BatchCompleted)
			batch.CoverName = ""
			if err := NewBatchRepository(db).Create(batch); err == nil {
				t.Error("expected validation error")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewBatchRepository(db).Get("missing")
			if !errors.Is(err, shared.ErrBatchNotFound) {
				t.Errorf("expected ErrBatchNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			batch := newTestBatch(models.BatchCompleted)
			batch.SetID("missing")
			if err := NewBatchRepository(db).Update(batch); !errors.Is(err, shared.ErrBatchNotFound) {
				t.Errorf("expected ErrBatchNotFound, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("AlreadyDeleted", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewBatchRepository(db)
			batch := newTestBatch(models.BatchCompleted)
			if err := repo.Create(batch); err != nil {
				t.Fatalf("failed to create batch: %v", err)
			}
			if err := repo.Delete(batch.ID()); err != nil {
				t.Fatalf("failed to delete batch: %v", err)
			}
			if err := repo.Delete(batch.ID()); !errors.Is(err, shared.ErrBatchNotFound) {
				t.Errorf("expected ErrBatchNotFound, got %v", err)
			}
		})
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		if _, err := NewBatchRepository(db).List(nil); err == nil {
			t.Error("expected error from closed database")
		}
	})
}

func TestBatchRecorder(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	recorder := NewBatchRecorder(db)
	batch := newTestBatch(models.BatchCancelled)
	if err := recorder.RecordBatch(batch); err != nil {
		t.Fatalf("failed to record batch: %v", err)
	}

	stored, err := NewBatchRepository(db).Get(batch.ID())
	if err != nil {
		t.Fatalf("failed to get recorded batch: %v", err)
	}
	if stored.Status != models.BatchCancelled {
		t.Errorf("expected cancelled batch, got %s", stored.Status)
	}
}
