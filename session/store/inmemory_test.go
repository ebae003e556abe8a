package store

import (
	"context"
	"errors"
	"testing"

	tferrors "github.com/sweetpotato0/tripflow/errors"
	"github.com/sweetpotato0/tripflow/session"
)

func TestInMemoryStoreSaveLoad(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	rec := session.New("s1").Snapshot()
	if err := st.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := st.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != "s1" {
		t.Errorf("expected ID s1, got %s", loaded.ID)
	}
}

func TestInMemoryStoreLoadMissing(t *testing.T) {
	st := NewInMemoryStore()

	_, err := st.Load(context.Background(), "missing")
	if !errors.Is(err, tferrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStoreSaveRejectsEmptyID(t *testing.T) {
	st := NewInMemoryStore()

	err := st.Save(context.Background(), &session.Record{})
	if !errors.Is(err, tferrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	if err := st.Save(ctx, session.New("s1").Snapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := st.Exists(ctx, "s1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected session to be gone after delete")
	}

	if err := st.Delete(ctx, "s1"); !errors.Is(err, tferrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestInMemoryStoreListCount(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := st.Save(ctx, session.New(id).Snapshot()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	ids, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 IDs, got %d", len(ids))
	}

	count, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestInMemoryStoreIsolation(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()

	rec := session.New("s1").Snapshot()
	if err := st.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec.State = session.StateClosed

	loaded, err := st.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.State != session.StateActive {
		t.Error("caller mutation leaked into stored record")
	}
}
