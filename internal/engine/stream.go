package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/splice/internal/tree"
)

// Source is a portal's claim on a stream.
type Source struct {
	stream     *Stream
	closure    *Closure
	owner      *Boundary
	importance int
	seq        int
}

func newSource(e *Engine, owner *Boundary, s *Stream, importance int) *Source {
	src := &Source{stream: s, owner: owner, importance: importance}
	src.closure = newClosure(e, owner)
	src.closure.source = src
	return src
}

// Importance returns the source's rank.
func (s *Source) Importance() int { return s.importance }

// Closure returns the closure carrying the source's content.
func (s *Source) Closure() *Closure { return s.closure }

// Stream is a named redirection point for content. Any number of portals
// may claim it; the best one is active and grounded at every stream pass.
type Stream struct {
	e       *Engine
	name    string
	sources []*Source
	active  *Source
	passes  []*Applied

	listeners map[*Boundary]bool
}

func newStream(e *Engine, name string) *Stream {
	return &Stream{e: e, name: name, listeners: make(map[*Boundary]bool)}
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// Active returns the active source, or nil.
func (s *Stream) Active() *Source { return s.active }

// Sources returns the claiming sources in claim order.
func (s *Stream) Sources() []*Source { return slices.Clone(s.sources) }

func (s *Stream) activeClosure() *Closure {
	if s.active == nil {
		return nil
	}
	return s.active.closure
}

func (s *Stream) listen(b *Boundary) { s.listeners[b] = true }

func (s *Stream) addPass(a *Applied) {
	if !slices.Contains(s.passes, a) {
		s.passes = append(s.passes, a)
	}
}

func (s *Stream) removePass(a *Applied) {
	if i := slices.Index(s.passes, a); i >= 0 {
		s.passes = slices.Delete(s.passes, i, i+1)
	}
}

// Claim adds src to the stream and returns the output of any resulting
// source change.
func (s *Stream) Claim(src *Source) (Batch, error) {
	s.e.nextSource++
	src.seq = s.e.nextSource
	s.sources = append(s.sources, src)
	return s.settle()
}

// Release removes src from the stream. Releasing the active source fails
// over to the next best one.
func (s *Stream) Release(src *Source) (Batch, error) {
	i := slices.Index(s.sources, src)
	if i < 0 {
		return Batch{}, nil
	}
	s.sources = slices.Delete(s.sources, i, i+1)
	src.closure.dispose()
	if s.active != src {
		return Batch{}, nil
	}
	return s.switchTo(s.best())
}

// Rerank re-evaluates the best source after an importance change.
func (s *Stream) Rerank() (Batch, error) {
	return s.settle()
}

func (s *Stream) settle() (Batch, error) {
	best := s.best()
	if best == s.active {
		return Batch{}, nil
	}
	return s.switchTo(best)
}

// best picks the highest importance. Ties keep the active source, then
// favour the earliest claim.
func (s *Stream) best() *Source {
	var best *Source
	for _, src := range s.sources {
		switch {
		case best == nil, src.importance > best.importance:
			best = src
		case src.importance == best.importance && src == s.active:
			best = src
		}
	}
	return best
}

// switchTo tears down the old source at every pass, then grounds the new
// one. Passes inside output that is already being removed are skipped.
func (s *Stream) switchTo(next *Source) (Batch, error) {
	var batch Batch
	var first error
	old := s.active
	s.active = next

	passes := slices.Clone(s.passes)
	for _, a := range passes {
		if a.grounded == nil {
			continue
		}
		if err := a.grounded.Unground(a, &batch); err != nil && first == nil {
			first = err
		}
	}
	if next != nil {
		for _, a := range passes {
			if !s.live(a) {
				continue
			}
			if err := next.closure.Ground(a, &batch); err != nil && first == nil {
				first = err
			}
		}
	}

	s.e.log.Info("stream source changed", "stream", s.name,
		"from", sourceName(old), "to", sourceName(next))
	s.e.sched.enqueue(s.interested(), true)
	return batch, first
}

func (s *Stream) live(a *Applied) bool {
	if a.owner == nil || a.owner.status == Destroyed || a.Node == 0 {
		return false
	}
	arena := a.owner.host.arena
	p := arena.OutputParent(a.Node)
	return p != tree.Handle(0) && arena.Attached(p)
}

func (s *Stream) interested() []*Boundary {
	var out []*Boundary
	for b := range s.listeners {
		if b.status == Destroyed {
			delete(s.listeners, b)
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *Boundary) int { return cmp.Compare(a.id, b.id) })
	return out
}

func sourceName(src *Source) string {
	if src == nil || src.owner == nil {
		return ""
	}
	return src.owner.Path()
}
