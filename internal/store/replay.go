package store

import (
	"context"
	"fmt"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/render"
)

// Mismatch kinds reported by Replay.
const (
	MismatchInstruction = "instruction"
	MismatchSnapshot    = "snapshot"
)

// Mismatch is one divergence found while replaying a trace.
type Mismatch struct {
	PassID string
	Host   string
	Kind   string
	// Index is the instruction position within the pass, or -1 for
	// snapshot mismatches.
	Index int
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	if m.Kind == MismatchSnapshot {
		return fmt.Sprintf("pass %s host %s: snapshot digest %s, replayed %s", m.PassID, m.Host, m.Want, m.Got)
	}
	return fmt.Sprintf("pass %s host %s: instruction %d digest %s, replayed %s", m.PassID, m.Host, m.Index, m.Want, m.Got)
}

// ReplayResult summarizes the replay of one host.
type ReplayResult struct {
	Host         string
	Passes       int
	Instructions int
	// Snapshot is the output rebuilt from the stored instructions.
	Snapshot   string
	Mismatches []Mismatch
}

// OK reports whether the replay found no divergence.
func (r ReplayResult) OK() bool { return len(r.Mismatches) == 0 }

// Replay rebuilds the output of host by applying its stored instruction
// logs to a fresh in-memory renderer, in pass order.
//
// Every instruction record is re-digested and compared with the digest
// stored next to it. After each pass that recorded a snapshot, the rebuilt
// tree's snapshot digest is compared with the recorded one. Divergences are
// reported as mismatches; an instruction the renderer cannot apply is an
// error, since nothing after it can be trusted.
func (s *Store) Replay(ctx context.Context, host string) (ReplayResult, error) {
	res := ReplayResult{Host: host}
	if host == "" {
		return res, fmt.Errorf("replay: host is empty")
	}
	passes, err := s.ReadPasses(ctx, host)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}

	mem := render.NewMemory()
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Passes++
		for i, in := range p.Instructions {
			got, err := ir.InstructionDigest(in.Record())
			if err != nil {
				return res, fmt.Errorf("replay: pass %s: %w", p.ID, err)
			}
			if i < len(p.digests) && got != p.digests[i] {
				res.Mismatches = append(res.Mismatches, Mismatch{
					PassID: p.ID, Host: host, Kind: MismatchInstruction,
					Index: i, Want: p.digests[i], Got: got,
				})
			}
		}
		if err := mem.Commit(p.Instructions); err != nil {
			return res, fmt.Errorf("replay: pass %s: %w", p.ID, err)
		}
		res.Instructions += len(p.Instructions)

		if !p.HasSnapshot {
			continue
		}
		if got := ir.SnapshotDigest(mem.Snapshot()); got != p.SnapshotDigest {
			res.Mismatches = append(res.Mismatches, Mismatch{
				PassID: p.ID, Host: host, Kind: MismatchSnapshot,
				Index: -1, Want: p.SnapshotDigest, Got: got,
			})
		}
	}
	res.Snapshot = mem.Snapshot()
	return res, nil
}

// ReplayAll replays every stored host, in name order.
func (s *Store) ReplayAll(ctx context.Context) ([]ReplayResult, error) {
	hosts, err := s.Hosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	results := make([]ReplayResult, 0, len(hosts))
	for _, h := range hosts {
		r, err := s.Replay(ctx, h)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
