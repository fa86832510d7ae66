package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/splice/internal/engine"
)

// Recorder writes every committed pass of an engine to a Store.
//
// Engine hooks cannot return errors, so the first write failure is kept
// and reported by Err; later passes are still attempted.
type Recorder struct {
	store *Store
	ctx   context.Context
	log   *slog.Logger

	mu      sync.Mutex
	err     error
	written int
}

// NewRecorder creates a recorder writing to s. A nil logger uses
// slog.Default().
func NewRecorder(ctx context.Context, s *Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: s, ctx: ctx, log: log}
}

// Hooks returns the engine hooks to register with engine.WithHooks.
func (r *Recorder) Hooks() engine.Hooks {
	return engine.Hooks{OnPassCommitted: r.record}
}

func (r *Recorder) record(rec engine.PassRecord) {
	inserted, err := r.store.WritePass(r.ctx, rec)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.log.Error("trace write failed", "pass", rec.ID, "host", rec.Host, "error", err)
		if r.err == nil {
			r.err = err
		}
		return
	}
	if inserted {
		r.written++
	}
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Written returns the number of passes stored.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}
