// Package draft keeps in-progress note edits in sync between the editor and
// durable storage. Every mutation lands in the local cache synchronously;
// the remote flush is debounced behind a quiescence interval and serialized
// per note against the sign path, so autosave can never revert a committed
// sign and at most one remote write per note is in flight.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardnote/wardnote/internal/domain/note"
	"github.com/wardnote/wardnote/internal/platform/localcache"
)

const (
	defaultDebounce    = 3 * time.Second
	defaultRetryBudget = 5
	flushTimeout       = 10 * time.Second
)

// RemoteStore is the durable merge-patch write the manager flushes into.
// note.Repository satisfies it.
type RemoteStore interface {
	UpdateDraftSections(ctx context.Context, id uuid.UUID, p note.SectionPatch) error
}

// WarningFunc is invoked (non-blocking for the editor) once a note's flush
// retry budget is exhausted.
type WarningFunc func(noteID uuid.UUID, err error)

// flushTask is an explicit cancellable scheduled flush, replacing implicit
// closure-over-timer debouncing.
type flushTask struct {
	timer *time.Timer
}

func scheduleFlush(d time.Duration, fn func()) *flushTask {
	return &flushTask{timer: time.AfterFunc(d, fn)}
}

func (t *flushTask) Cancel() {
	if t != nil && t.timer != nil {
		t.timer.Stop()
	}
}

type pendingDraft struct {
	patch   note.SectionPatch
	task    *flushTask
	retries int
	warned  bool
}

// Manager owns the debounced autosave loop for every open draft.
type Manager struct {
	cache       localcache.DraftCache
	remote      RemoteStore
	locks       *note.Locks
	logger      zerolog.Logger
	debounce    time.Duration
	retryBudget int
	onWarning   WarningFunc

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingDraft
	closed  bool
}

type Option func(*Manager)

// WithDebounce overrides the quiescence interval between the last edit and
// the remote flush.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// WithRetryBudget overrides how many failed flushes are absorbed silently
// before the warning callback fires.
func WithRetryBudget(n int) Option {
	return func(m *Manager) { m.retryBudget = n }
}

// WithWarningFunc sets the callback for exhausted retry budgets.
func WithWarningFunc(fn WarningFunc) Option {
	return func(m *Manager) { m.onWarning = fn }
}

func NewManager(cache localcache.DraftCache, remote RemoteStore, locks *note.Locks, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cache:       cache,
		remote:      remote,
		locks:       locks,
		logger:      logger,
		debounce:    defaultDebounce,
		retryBudget: defaultRetryBudget,
		pending:     make(map[uuid.UUID]*pendingDraft),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NoteChanged accepts one local mutation: the patch is merged into the
// note's pending state, written through to the local cache synchronously,
// and the remote flush timer is restarted.
func (m *Manager) NoteChanged(ctx context.Context, noteID uuid.UUID, patch note.SectionPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("draft manager is closed")
	}
	p, ok := m.pending[noteID]
	if !ok {
		p = &pendingDraft{}
		m.pending[noteID] = p
	}
	p.patch = p.patch.Merge(patch)
	snapshot := p.patch
	p.task.Cancel()
	p.task = scheduleFlush(m.debounce, func() { m.flush(noteID) })
	m.mu.Unlock()

	// Synchronous local write: the draft survives a crash even if the
	// debounced remote flush never runs.
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := m.cache.Put(ctx, noteID.String(), data); err != nil {
		m.logger.Warn().Err(err).Stringer("note_id", noteID).Msg("local draft cache write failed")
		return err
	}
	return nil
}

// Flush forces an immediate remote flush for the note, bypassing the
// debounce. Used before sign and on shutdown.
func (m *Manager) Flush(ctx context.Context, noteID uuid.UUID) error {
	m.mu.Lock()
	p, ok := m.pending[noteID]
	if ok {
		p.task.Cancel()
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.flushOnce(ctx, noteID)
}

// Recover returns the locally cached pending patch for a note, if any. Used
// after a crash to restore unflushed edits into a new editing session.
func (m *Manager) Recover(ctx context.Context, noteID uuid.UUID) (note.SectionPatch, error) {
	data, err := m.cache.Get(ctx, noteID.String())
	if errors.Is(err, localcache.ErrNotFound) {
		return note.SectionPatch{}, nil
	}
	if err != nil {
		return note.SectionPatch{}, err
	}
	var patch note.SectionPatch
	if err := json.Unmarshal(data, &patch); err != nil {
		return note.SectionPatch{}, err
	}
	return patch, nil
}

// flush is the timer entry point.
func (m *Manager) flush(noteID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := m.flushOnce(ctx, noteID); err != nil {
		m.logger.Debug().Err(err).Stringer("note_id", noteID).Msg("autosave flush failed; will retry")
	}
}

// flushOnce performs one serialized remote write attempt for the note.
func (m *Manager) flushOnce(ctx context.Context, noteID uuid.UUID) error {
	m.mu.Lock()
	p, ok := m.pending[noteID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	patch := p.patch
	m.mu.Unlock()

	// The shared per-note lock is what keeps this flush from interleaving
	// with a sign or amend on the same note.
	unlock := m.locks.Lock(noteID)
	err := m.remote.UpdateDraftSections(ctx, noteID, patch)
	unlock()

	// A flush that lost the race against sign is stale by definition: the
	// merge-patch guard made it a no-op, and the pending edits are void.
	if err == nil || errors.Is(err, note.ErrNoteSigned) {
		m.mu.Lock()
		if cur, ok := m.pending[noteID]; ok && cur.patch == patch {
			cur.task.Cancel()
			delete(m.pending, noteID)
		}
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	p.retries++
	retries := p.retries
	exhausted := retries >= m.retryBudget && !p.warned
	if exhausted {
		p.warned = true
	}
	// Leave the pending patch in place; the next mutation or timer tick
	// retries it.
	p.task.Cancel()
	p.task = scheduleFlush(m.debounce, func() { m.flush(noteID) })
	m.mu.Unlock()

	if exhausted {
		m.logger.Warn().Err(err).Stringer("note_id", noteID).Int("retries", retries).
			Msg("autosave retry budget exhausted")
		if m.onWarning != nil {
			m.onWarning(noteID, err)
		}
	}
	return err
}

// Close stops all timers and makes a best-effort final flush of every
// pending draft.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	ids := make([]uuid.UUID, 0, len(m.pending))
	for id, p := range m.pending {
		p.task.Cancel()
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.flushOnce(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
