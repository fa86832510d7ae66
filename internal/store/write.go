package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
)

// WritePass records a committed pass with its instructions and calls in a
// single transaction.
//
// Uses ON CONFLICT(id, host) DO NOTHING for idempotency: writing a pass that
// is already stored returns inserted=false and leaves the stored rows alone.
//
// Instruction records are serialized to canonical JSON per RFC 8785 and
// stored with their digest so replay can detect altered rows.
func (s *Store) WritePass(ctx context.Context, rec engine.PassRecord) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var snapshot, digest sql.NullString
	if rec.HasSnapshot {
		snapshot = sql.NullString{String: rec.Snapshot, Valid: true}
		digest = sql.NullString{String: ir.SnapshotDigest(rec.Snapshot), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO passes
		(id, host, seq, instructions, snapshot, snapshot_digest, duration_us, engine_version, trace_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, host) DO NOTHING
	`,
		rec.ID,
		rec.Host,
		firstSeq(rec),
		len(rec.Instructions),
		snapshot,
		digest,
		rec.Duration.Microseconds(),
		ir.EngineVersion,
		ir.TraceVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write pass: insert pass: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write pass: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already recorded
		return false, tx.Commit()
	}

	for i, in := range rec.Instructions {
		record := in.Record()
		recJSON, err := marshalRecord(record)
		if err != nil {
			return false, fmt.Errorf("write pass: instruction %d: %w", i, err)
		}
		sum, err := ir.InstructionDigest(record)
		if err != nil {
			return false, fmt.Errorf("write pass: instruction %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO instructions
			(pass_id, host, idx, seq, op, node, record, digest)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			rec.Host,
			i,
			in.Seq,
			string(in.Op),
			int64(in.Node),
			recJSON,
			sum,
		)
		if err != nil {
			return false, fmt.Errorf("write pass: instruction %d: %w", i, err)
		}
	}

	for i, c := range rec.Calls {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO calls
			(pass_id, host, idx, seq, kind, boundary, component)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			rec.Host,
			i,
			c.Seq,
			string(c.Kind),
			int64(c.Boundary),
			c.Component,
		)
		if err != nil {
			return false, fmt.Errorf("write pass: call %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write pass: commit: %w", err)
	}
	return true, nil
}

// firstSeq orders a pass by the earliest stamp it carries.
func firstSeq(rec engine.PassRecord) int64 {
	if len(rec.Instructions) > 0 {
		return rec.Instructions[0].Seq
	}
	if len(rec.Calls) > 0 {
		return rec.Calls[0].Seq
	}
	return 0
}
