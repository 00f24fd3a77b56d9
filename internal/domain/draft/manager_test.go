package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardnote/wardnote/internal/domain/note"
	"github.com/wardnote/wardnote/internal/platform/localcache"
)

type mockCache struct {
	mu    sync.Mutex
	items map[string][]byte
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]byte)}
}

func (m *mockCache) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items[key] = value
	return nil
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, localcache.ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

type mockRemote struct {
	mu    sync.Mutex
	calls []note.SectionPatch
	err   error
}

func (m *mockRemote) UpdateDraftSections(_ context.Context, _ uuid.UUID, p note.SectionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, p)
	return nil
}

func (m *mockRemote) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockRemote) lastCall() note.SectionPatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return note.SectionPatch{}
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockRemote) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func strptr(s string) *string { return &s }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type fixture struct {
	m      *Manager
	cache  *mockCache
	remote *mockRemote
}

func newFixture(opts ...Option) *fixture {
	cache := newMockCache()
	remote := &mockRemote{}
	m := NewManager(cache, remote, note.NewLocks(), zerolog.Nop(), opts...)
	return &fixture{m: m, cache: cache, remote: remote}
}

func TestNoteChanged_LocalWriteIsSynchronous(t *testing.T) {
	// Long debounce: the remote flush never runs inside the test window.
	f := newFixture(WithDebounce(time.Hour))
	id := uuid.New()
	ctx := context.Background()

	if err := f.m.NoteChanged(ctx, id, note.SectionPatch{Diagnosis: strptr("CAP")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The edit is already recoverable even though nothing was flushed.
	patch, err := f.m.Recover(ctx, id)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if patch.Diagnosis == nil || *patch.Diagnosis != "CAP" {
		t.Errorf("recovered patch = %+v", patch)
	}
	if f.remote.callCount() != 0 {
		t.Error("remote flush ran before the debounce elapsed")
	}
}

func TestNoteChanged_LocalWriteFailureSurfaces(t *testing.T) {
	f := newFixture(WithDebounce(time.Hour))
	f.cache.err = errors.New("disk full")

	err := f.m.NoteChanged(context.Background(), uuid.New(), note.SectionPatch{Plan: strptr("x")})
	if err == nil {
		t.Fatal("expected local cache failure to surface")
	}
}

func TestDebouncedFlush(t *testing.T) {
	f := newFixture(WithDebounce(20 * time.Millisecond))
	id := uuid.New()

	if err := f.m.NoteChanged(context.Background(), id, note.SectionPatch{Diagnosis: strptr("CAP")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return f.remote.callCount() == 1 })

	got := f.remote.lastCall()
	if got.Diagnosis == nil || *got.Diagnosis != "CAP" {
		t.Errorf("flushed patch = %+v", got)
	}
}

// Rapid edits inside the debounce window coalesce into one remote write
// carrying the merged patch, later values winning.
func TestRapidEditsCoalesce(t *testing.T) {
	f := newFixture(WithDebounce(60 * time.Millisecond))
	id := uuid.New()
	ctx := context.Background()

	f.m.NoteChanged(ctx, id, note.SectionPatch{Diagnosis: strptr("CAP")})
	f.m.NoteChanged(ctx, id, note.SectionPatch{Plan: strptr("oral amoxicillin")})
	f.m.NoteChanged(ctx, id, note.SectionPatch{Plan: strptr("IV co-amoxiclav")})

	waitFor(t, 2*time.Second, func() bool { return f.remote.callCount() >= 1 })
	if n := f.remote.callCount(); n != 1 {
		t.Errorf("expected 1 coalesced flush, got %d", n)
	}
	got := f.remote.lastCall()
	if got.Diagnosis == nil || *got.Diagnosis != "CAP" {
		t.Errorf("diagnosis missing from merged patch: %+v", got)
	}
	if got.Plan == nil || *got.Plan != "IV co-amoxiclav" {
		t.Errorf("later plan edit should win: %+v", got)
	}
}

func TestFlush_Immediate(t *testing.T) {
	f := newFixture(WithDebounce(time.Hour))
	id := uuid.New()
	ctx := context.Background()

	f.m.NoteChanged(ctx, id, note.SectionPatch{Safety: strptr("allergy band on")})
	if err := f.m.Flush(ctx, id); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if f.remote.callCount() != 1 {
		t.Fatalf("expected 1 remote write, got %d", f.remote.callCount())
	}

	// Nothing pending: a second flush is a no-op.
	if err := f.m.Flush(ctx, id); err != nil {
		t.Fatalf("idle flush: %v", err)
	}
	if f.remote.callCount() != 1 {
		t.Errorf("idle flush wrote remotely, calls = %d", f.remote.callCount())
	}
}

// A flush that reaches storage after the note was signed is stale: the write
// was refused, the pending edits are void, and no error propagates.
func TestFlush_AfterSignIsBenign(t *testing.T) {
	f := newFixture(WithDebounce(time.Hour))
	f.remote.setErr(note.ErrNoteSigned)
	id := uuid.New()
	ctx := context.Background()

	f.m.NoteChanged(ctx, id, note.SectionPatch{Diagnosis: strptr("late edit")})
	if err := f.m.Flush(ctx, id); err != nil {
		t.Fatalf("stale flush must not error, got %v", err)
	}

	// The pending patch was dropped; a retry would write nothing.
	f.remote.setErr(nil)
	if err := f.m.Flush(ctx, id); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if f.remote.callCount() != 0 {
		t.Errorf("stale patch was retried, calls = %d", f.remote.callCount())
	}
}

func TestRetryBudgetExhaustionWarnsOnce(t *testing.T) {
	warned := make(chan error, 4)
	f := newFixture(
		WithDebounce(5*time.Millisecond),
		WithRetryBudget(2),
		WithWarningFunc(func(_ uuid.UUID, err error) { warned <- err }),
	)
	f.remote.setErr(errors.New("network partition"))
	id := uuid.New()

	f.m.NoteChanged(context.Background(), id, note.SectionPatch{Plan: strptr("x")})

	select {
	case err := <-warned:
		if err == nil {
			t.Error("warning callback received nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("warning callback never fired")
	}

	// Budget exhaustion warns once, not on every subsequent failure.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-warned:
		t.Error("warning fired more than once")
	default:
	}

	// Recovery: once the remote heals, the retained patch flushes through.
	f.remote.setErr(nil)
	waitFor(t, 2*time.Second, func() bool { return f.remote.callCount() == 1 })
}

func TestRecover_NothingPending(t *testing.T) {
	f := newFixture()
	patch, err := f.m.Recover(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !patch.IsEmpty() {
		t.Errorf("expected empty patch, got %+v", patch)
	}
}

func TestClose_FlushesPending(t *testing.T) {
	f := newFixture(WithDebounce(time.Hour))
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	f.m.NoteChanged(ctx, first, note.SectionPatch{Diagnosis: strptr("a")})
	f.m.NoteChanged(ctx, second, note.SectionPatch{Diagnosis: strptr("b")})

	if err := f.m.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if f.remote.callCount() != 2 {
		t.Errorf("expected 2 final flushes, got %d", f.remote.callCount())
	}
	if err := f.m.NoteChanged(ctx, first, note.SectionPatch{Plan: strptr("x")}); err == nil {
		t.Error("expected mutation after close to be rejected")
	}
}
