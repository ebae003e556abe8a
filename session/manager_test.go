package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sweetpotato0/tripflow/message"
	"github.com/sweetpotato0/tripflow/session"
	"github.com/sweetpotato0/tripflow/session/store"
)

func newManager() *session.Manager {
	return session.NewManager(session.WithStore(store.NewInMemoryStore()))
}

func TestManagerGetOrCreate(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	sess, err := mgr.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if sess.ID() != "s1" {
		t.Errorf("expected ID s1, got %s", sess.ID())
	}

	again, err := mgr.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if again != sess {
		t.Error("expected cached session instance on second call")
	}
}

func TestManagerRehydratesFromStore(t *testing.T) {
	st := store.NewInMemoryStore()
	ctx := context.Background()

	first := session.NewManager(session.WithStore(st))
	sess, err := first.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	sess.Append(message.NewMessage(message.RoleUser, "hello"))
	if err := first.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := session.NewManager(session.WithStore(st))
	restored, err := second.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if len(restored.Turns) != 1 || restored.Turns[0].Content != "hello" {
		t.Errorf("expected rehydrated history, got %+v", restored.Turns)
	}
}

func TestManagerDelete(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	if _, err := mgr.GetOrCreate(ctx, "s1"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	existed, err := mgr.Delete(ctx, "s1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Error("expected existed=true for known session")
	}

	// Deleting again is idempotent.
	existed, err = mgr.Delete(ctx, "s1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if existed {
		t.Error("expected existed=false for unknown session")
	}
}

func TestManagerLockSerializes(t *testing.T) {
	mgr := newManager()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := mgr.Lock("s1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most 1 holder of the session lock, saw %d", maxActive)
	}
}

func TestManagerLockSurvivesDelete(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	if _, err := mgr.GetOrCreate(ctx, "s1"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	var inFlight, maxInFlight int32
	enter := func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	// Turn 1 holds the session lock.
	unlock1 := mgr.Lock("s1")

	// Turn 2 queues behind it.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		unlock := mgr.Lock("s1")
		defer unlock()
		enter()
	}()
	time.Sleep(5 * time.Millisecond)

	// The session is cleared while turn 2 is still queued, then a new turn
	// arrives for the recreated session. Both must serialize with turn 2.
	if _, err := mgr.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		unlock := mgr.Lock("s1")
		defer unlock()
		enter()
	}()
	time.Sleep(5 * time.Millisecond)

	unlock1()
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("same-session critical sections overlapped after clear: max in flight = %d", got)
	}
}

type loadFailingStore struct {
	session.Store
}

func (s *loadFailingStore) Load(ctx context.Context, id string) (*session.Record, error) {
	return nil, errors.New("backend unavailable")
}

func TestManagerGetOrCreatePropagatesLoadErrors(t *testing.T) {
	mgr := session.NewManager(session.WithStore(&loadFailingStore{Store: store.NewInMemoryStore()}))

	if _, err := mgr.GetOrCreate(context.Background(), "s1"); err == nil {
		t.Fatal("expected a backend load failure to surface, not a fresh session")
	}
}

func TestManagerCleanupIdle(t *testing.T) {
	mgr := newManager()
	ctx := context.Background()

	stale, err := mgr.GetOrCreate(ctx, "stale")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	if err := mgr.Save(ctx, stale); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := mgr.GetOrCreate(ctx, "fresh"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	removed, err := mgr.CleanupIdle(ctx, time.Hour)
	if err != nil {
		t.Fatalf("CleanupIdle failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 session removed, got %d", removed)
	}

	count, err := mgr.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 session remaining, got %d", count)
	}
}
