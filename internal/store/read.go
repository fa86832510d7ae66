package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/splice/internal/engine"
)

const passColumns = `id, host, seq, snapshot, snapshot_digest, duration_us, engine_version, trace_version`

// ReadPasses returns the stored passes of host with their instructions and
// calls, or the passes of every host when host is empty.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing is stored.
func (s *Store) ReadPasses(ctx context.Context, host string) ([]Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes`
	var args []any
	if host != "" {
		query += ` WHERE host = ?`
		args = append(args, host)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC, host COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	var passes []Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	rows.Close()

	// Load children after closing the cursor: the pool holds one connection.
	for i := range passes {
		if err := s.loadPass(ctx, &passes[i]); err != nil {
			return nil, err
		}
	}

	// Return empty slice instead of nil
	if passes == nil {
		passes = []Pass{}
	}
	return passes, nil
}

// ReadPass retrieves a single pass by id and host.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPass(ctx context.Context, id, host string) (Pass, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = ? AND host = ?`, id, host)
	p, err := scanPass(row)
	if err != nil {
		return Pass{}, err
	}
	if err := s.loadPass(ctx, &p); err != nil {
		return Pass{}, err
	}
	return p, nil
}

// Hosts returns the names of every host with stored passes, sorted.
func (s *Store) Hosts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT host FROM passes ORDER BY host COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	hosts := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hosts: %w", err)
	}
	return hosts, nil
}

// LastSeq returns the highest seq stored, or 0 for an empty store. A run
// resuming into the same database starts its clock after it.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM instructions
			UNION ALL
			SELECT seq FROM calls
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// ReadNodeHistory returns every stored instruction addressed to node on
// host, in seq order. Swaps are included for both nodes they exchange.
func (s *Store) ReadNodeHistory(ctx context.Context, host string, node uint64) ([]engine.Instruction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, record, digest FROM instructions
		WHERE host = ? AND (node = ? OR (op = 'swap' AND json_extract(record, '$.other') = ?))
		ORDER BY seq ASC
	`, host, int64(node), int64(node))
	if err != nil {
		return nil, fmt.Errorf("query node history: %w", err)
	}
	defer rows.Close()

	out := []engine.Instruction{}
	for rows.Next() {
		in, _, err := scanInstruction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node history: %w", err)
	}
	return out, nil
}

func (s *Store) loadPass(ctx context.Context, p *Pass) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, record, digest FROM instructions
		WHERE pass_id = ? AND host = ?
		ORDER BY idx ASC
	`, p.ID, p.Host)
	if err != nil {
		return fmt.Errorf("query instructions: %w", err)
	}
	p.Instructions = []engine.Instruction{}
	for rows.Next() {
		in, digest, err := scanInstruction(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("pass %s: %w", p.ID, err)
		}
		p.Instructions = append(p.Instructions, in)
		p.digests = append(p.digests, digest)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate instructions: %w", err)
	}
	rows.Close()

	crows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, boundary, component FROM calls
		WHERE pass_id = ? AND host = ?
		ORDER BY idx ASC
	`, p.ID, p.Host)
	if err != nil {
		return fmt.Errorf("query calls: %w", err)
	}
	defer crows.Close()
	p.Calls = []engine.CallRecord{}
	for crows.Next() {
		var c engine.CallRecord
		var kind string
		var boundary int64
		if err := crows.Scan(&c.Seq, &kind, &boundary, &c.Component); err != nil {
			return fmt.Errorf("scan call: %w", err)
		}
		c.Kind = engine.CallKind(kind)
		c.Boundary = uint64(boundary)
		p.Calls = append(p.Calls, c)
	}
	if err := crows.Err(); err != nil {
		return fmt.Errorf("iterate calls: %w", err)
	}
	return nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (Pass, error) {
	var p Pass
	var snapshot, digest sql.NullString
	var durationUS int64
	err := row.Scan(&p.ID, &p.Host, &p.Seq, &snapshot, &digest, &durationUS, &p.EngineVersion, &p.TraceVersion)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("scan pass: %w", err)
	}
	p.Snapshot = snapshot.String
	p.HasSnapshot = snapshot.Valid
	p.SnapshotDigest = digest.String
	p.Duration = time.Duration(durationUS) * time.Microsecond
	return p, nil
}

func scanInstruction(row scanner) (engine.Instruction, string, error) {
	var seq int64
	var recJSON, digest string
	if err := row.Scan(&seq, &recJSON, &digest); err != nil {
		return engine.Instruction{}, "", fmt.Errorf("scan instruction: %w", err)
	}
	rec, err := unmarshalRecord(recJSON)
	if err != nil {
		return engine.Instruction{}, "", err
	}
	in, err := instructionFromRecord(rec, seq)
	if err != nil {
		return engine.Instruction{}, "", err
	}
	return in, digest, nil
}
