package store

import (
	"time"

	"github.com/roach88/splice/internal/engine"
)

// Pass is one committed instruction log as stored.
type Pass struct {
	ID             string
	Host           string
	Seq            int64
	Instructions   []engine.Instruction
	Calls          []engine.CallRecord
	Snapshot       string
	HasSnapshot    bool
	SnapshotDigest string
	Duration       time.Duration
	EngineVersion  string
	TraceVersion   string

	// digests holds the stored digest of each instruction record.
	digests []string
}
