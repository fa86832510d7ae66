package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/roach88/splice/internal/def"
)

// Scheduler batches update requests into passes.
//
// An update pass drains the pending boundaries in position order, ancestors
// first, until no new requests arrive. The render pass that follows commits
// each host's accumulated log to its renderer and then fires the queued
// lifecycle calls. Without delays both happen synchronously inside the call
// that requested the update; with delays they run from Timers callbacks.
type Scheduler struct {
	e       *Engine
	pending map[*Boundary]bool

	logs      map[*Host][]Instruction
	callLog   map[*Host][]Call
	hostOrder []*Host
	calls     []Call

	updateCancel func()
	renderCancel func()
	running      bool
}

func newScheduler(e *Engine) *Scheduler {
	return &Scheduler{
		e:       e,
		pending: make(map[*Boundary]bool),
		logs:    make(map[*Host][]Instruction),
		callLog: make(map[*Host][]Call),
	}
}

// Pending reports the number of boundaries waiting for an update.
func (s *Scheduler) Pending() int { return len(s.pending) }

// Buffered reports the number of instructions waiting for a render pass.
func (s *Scheduler) Buffered() int {
	n := 0
	for _, l := range s.logs {
		n += len(l)
	}
	return n
}

func (s *Scheduler) enqueue(bs []*Boundary, force bool) {
	for _, b := range bs {
		if b.status == Destroyed {
			continue
		}
		s.pending[b] = true
		if force {
			b.forceNext = true
		}
	}
}

// RequestUpdate marks b for update. A forced request renders b even when
// its props and state compare equal.
func (s *Scheduler) RequestUpdate(b *Boundary, force bool) error {
	if b.status == Destroyed {
		return nil
	}
	s.enqueue([]*Boundary{b}, force)
	if s.running {
		return nil
	}
	if s.e.updateDelay == nil {
		return s.TriggerPass()
	}
	if s.updateCancel == nil {
		s.updateCancel = s.e.timers.AfterFunc(*s.e.updateDelay, func() {
			s.updateCancel = nil
			if err := s.TriggerPass(); err != nil {
				s.e.log.Error("delayed pass failed", "error", err)
			}
		})
	}
	return nil
}

// TriggerPass runs update passes until nothing is pending. Each update pass
// is followed by a render pass, or schedules one when a render delay is set.
func (s *Scheduler) TriggerPass() error {
	if s.running {
		return nil
	}
	s.running = true
	defer func() { s.running = false }()
	if s.updateCancel != nil {
		s.updateCancel()
		s.updateCancel = nil
	}

	for len(s.pending) > 0 {
		id := s.e.ids.Generate()
		if err := s.runUpdatePass(); err != nil {
			s.fail(id, err)
			return err
		}
		if s.e.immediateCalls {
			if err := s.fireCalls(); err != nil {
				s.fail(id, err)
				return err
			}
		}
		if s.e.renderDelay != nil {
			s.scheduleRender()
			continue
		}
		if err := s.runRenderPass(id); err != nil {
			s.fail(id, err)
			return err
		}
	}
	return nil
}

// Flush cancels pending timers and runs everything that is waiting: the
// update passes, then a render pass for whatever they produced.
func (s *Scheduler) Flush() error {
	if s.running {
		return nil
	}
	if err := s.TriggerPass(); err != nil {
		return err
	}
	if s.renderCancel != nil {
		s.renderCancel()
		s.renderCancel = nil
	}
	if len(s.hostOrder) == 0 && len(s.calls) == 0 {
		return nil
	}
	return s.render(s.e.ids.Generate())
}

func (s *Scheduler) fail(id string, err error) {
	s.e.log.Error("pass aborted", "pass", id, "pending", len(s.pending), "error", err)
	for _, h := range s.e.hooks {
		if h.OnPassError != nil {
			h.OnPassError(id, err)
		}
	}
}

// runUpdatePass updates pending boundaries in position order. A failing
// boundary stops the pass; the ones after it stay pending.
func (s *Scheduler) runUpdatePass() error {
	for len(s.pending) > 0 {
		list := make([]*Boundary, 0, len(s.pending))
		for b := range s.pending {
			list = append(list, b)
		}
		slices.SortFunc(list, func(a, b *Boundary) int {
			if c := slices.Compare(a.position(), b.position()); c != 0 {
				return c
			}
			return cmp.Compare(a.id, b.id)
		})

		for _, b := range list {
			if !s.pending[b] {
				// Already updated through an ancestor.
				continue
			}
			if b.status == Destroyed {
				delete(s.pending, b)
				continue
			}
			var batch Batch
			_, err := s.e.updateBoundary(b, false, &batch)
			delete(s.pending, b)
			s.AbsorbInstructions(batch)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// AbsorbInstructions appends a batch to the per-host logs and the call
// queue. Logs keep accumulation order per host.
func (s *Scheduler) AbsorbInstructions(batch Batch) {
	for _, op := range batch.Ops {
		s.track(op.Host)
		s.logs[op.Host] = append(s.logs[op.Host], op.Instruction)
	}
	for _, c := range batch.Calls {
		if c.Host != nil {
			s.track(c.Host)
			s.callLog[c.Host] = append(s.callLog[c.Host], c)
		}
		s.calls = append(s.calls, c)
	}
}

func (s *Scheduler) track(h *Host) {
	if _, ok := s.logs[h]; ok {
		return
	}
	if _, ok := s.callLog[h]; ok {
		return
	}
	s.logs[h] = nil
	s.hostOrder = append(s.hostOrder, h)
}

func (s *Scheduler) scheduleRender() {
	if s.renderCancel != nil {
		return
	}
	s.renderCancel = s.e.timers.AfterFunc(*s.e.renderDelay, func() {
		s.renderCancel = nil
		if err := s.render(s.e.ids.Generate()); err != nil {
			s.e.log.Error("delayed render failed", "error", err)
		}
	})
}

// render runs a render pass outside TriggerPass and picks up any update the
// lifecycle calls requested.
func (s *Scheduler) render(id string) error {
	s.running = true
	err := s.runRenderPass(id)
	s.running = false
	if err != nil {
		s.fail(id, err)
		return err
	}
	if len(s.pending) > 0 {
		if s.e.updateDelay == nil {
			return s.TriggerPass()
		}
		if s.updateCancel == nil {
			s.updateCancel = s.e.timers.AfterFunc(*s.e.updateDelay, func() {
				s.updateCancel = nil
				if err := s.TriggerPass(); err != nil {
					s.e.log.Error("delayed pass failed", "error", err)
				}
			})
		}
	}
	return nil
}

// runRenderPass commits every host log in accumulation order, then fires
// the queued calls.
func (s *Scheduler) runRenderPass(id string) error {
	hosts := s.hostOrder
	logs, callLog := s.logs, s.callLog
	s.hostOrder = nil
	s.logs = make(map[*Host][]Instruction)
	s.callLog = make(map[*Host][]Call)

	for _, h := range hosts {
		if err := s.commit(id, h, logs[h], callLog[h]); err != nil {
			return err
		}
	}
	if s.e.immediateCalls {
		return nil
	}
	return s.fireCalls()
}

func (s *Scheduler) commit(id string, h *Host, ins []Instruction, calls []Call) error {
	if len(ins) == 0 && len(calls) == 0 {
		return nil
	}
	start := time.Now()
	if len(ins) > 0 {
		if err := h.renderer.Commit(ins); err != nil {
			return newCommitError(h, err)
		}
	}
	rec := PassRecord{
		ID:           id,
		Host:         h.name,
		Instructions: ins,
		Calls:        make([]CallRecord, 0, len(calls)),
	}
	for _, c := range calls {
		cr := CallRecord{Seq: c.Seq, Kind: c.Kind, Component: c.Name()}
		if c.Boundary != nil {
			cr.Boundary = c.Boundary.id
		}
		rec.Calls = append(rec.Calls, cr)
	}
	if sn, ok := h.renderer.(Snapshotter); ok {
		rec.Snapshot = sn.Snapshot()
		rec.HasSnapshot = true
	}
	rec.Duration = time.Since(start)

	s.e.log.Debug("pass committed", "pass", id, "host", h.name,
		"instructions", len(ins), "calls", len(calls))
	for _, hk := range s.e.hooks {
		if hk.OnPassCommitted != nil {
			hk.OnPassCommitted(rec)
		}
	}
	return nil
}

// commitForeign commits instructions for other hosts right away, behind
// whatever those hosts already had buffered.
func (s *Scheduler) commitForeign(foreign Batch) error {
	if len(foreign.Ops) == 0 {
		return nil
	}
	var order []*Host
	byHost := make(map[*Host][]Instruction)
	for _, op := range foreign.Ops {
		if _, ok := byHost[op.Host]; !ok {
			order = append(order, op.Host)
		}
		byHost[op.Host] = append(byHost[op.Host], op.Instruction)
	}
	for _, h := range order {
		ins := append(s.logs[h], byHost[h]...)
		calls := s.callLog[h]
		s.dropHost(h)
		if err := s.commit(s.e.ids.Generate(), h, ins, calls); err != nil {
			return err
		}
	}
	return nil
}

// dropHost forgets the buffered log of h. Queued calls still fire.
func (s *Scheduler) dropHost(h *Host) {
	delete(s.logs, h)
	delete(s.callLog, h)
	if i := slices.Index(s.hostOrder, h); i >= 0 {
		s.hostOrder = slices.Delete(s.hostOrder, i, i+1)
	}
}

// fireCalls runs queued lifecycle and ref calls in queue order. A failing
// hook stops the run; the calls after it stay queued.
func (s *Scheduler) fireCalls() error {
	calls := s.calls
	s.calls = nil
	for i, c := range calls {
		if err := s.fire(c); err != nil {
			s.calls = append(calls[i+1:], s.calls...)
			return err
		}
	}
	return nil
}

func (s *Scheduler) fire(c Call) error {
	if c.Kind == CallRef {
		c.Ref.Attach(c.Event, c.Node)
		return nil
	}
	b := c.Boundary
	if b == nil || b.status == Destroyed || b.comp == nil {
		return nil
	}
	switch c.Kind {
	case CallMounted:
		if h, ok := b.comp.(def.DidMounter); ok {
			if err := h.DidMount(b); err != nil {
				return newHookError(b, "DidMount", err)
			}
		}
	case CallUpdated:
		if h, ok := b.comp.(def.DidUpdater); ok {
			if err := h.DidUpdate(b, c.Prev); err != nil {
				return newHookError(b, "DidUpdate", err)
			}
		}
	case CallMoved:
		if h, ok := b.comp.(def.DidMover); ok {
			if err := h.DidMove(b); err != nil {
				return newHookError(b, "DidMove", err)
			}
		}
	}
	return nil
}
