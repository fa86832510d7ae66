package render

import (
	"errors"
	"slices"
	"sync"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/tree"
)

// Recording forwards to another renderer and keeps every log it commits.
type Recording struct {
	inner engine.Renderer

	mu   sync.Mutex
	logs [][]engine.Instruction
}

// NewRecording wraps inner.
func NewRecording(inner engine.Renderer) *Recording {
	return &Recording{inner: inner}
}

// Commit records ins, then forwards it.
func (r *Recording) Commit(ins []engine.Instruction) error {
	r.mu.Lock()
	r.logs = append(r.logs, slices.Clone(ins))
	r.mu.Unlock()
	return r.inner.Commit(ins)
}

// ReadBack forwards to the wrapped renderer.
func (r *Recording) ReadBack(h tree.Handle) (engine.NodeInfo, bool) {
	return r.inner.ReadBack(h)
}

// Logs returns every committed log in commit order.
func (r *Recording) Logs() [][]engine.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.logs)
}

// Last returns the most recent log, or nil.
func (r *Recording) Last() []engine.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) == 0 {
		return nil
	}
	return r.logs[len(r.logs)-1]
}

// Count returns how many instructions with op were committed in total.
func (r *Recording) Count(op engine.Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.logs {
		for _, in := range l {
			if in.Op == op {
				n++
			}
		}
	}
	return n
}

// Reset forgets the recorded logs.
func (r *Recording) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = nil
}

// Snapshot forwards to the wrapped renderer when it can serialize.
func (r *Recording) Snapshot() string {
	if s, ok := r.inner.(engine.Snapshotter); ok {
		return s.Snapshot()
	}
	return ""
}

// Clone wraps a clone of the inner renderer.
func (r *Recording) Clone() engine.Renderer {
	if c, ok := r.inner.(engine.Cloner); ok {
		return NewRecording(c.Clone())
	}
	return NewRecording(NewMemory())
}

// ErrRejected is returned by Failing.
var ErrRejected = errors.New("renderer rejected instructions")

// Failing rejects every commit. Used to exercise commit errors.
type Failing struct{ *Memory }

// NewFailing creates a renderer that always fails.
func NewFailing() *Failing {
	return &Failing{Memory: NewMemory()}
}

// Commit implements engine.Renderer.
func (f *Failing) Commit([]engine.Instruction) error { return ErrRejected }
