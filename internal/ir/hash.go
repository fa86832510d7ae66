package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix allows the
// algorithm to change without colliding with stored digests.
const (
	DomainSnapshot    = "splice/snapshot/v1"
	DomainInstruction = "splice/instruction/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotDigest hashes a serialized output tree. Replay compares these
// digests against the ones recorded at commit time.
func SnapshotDigest(snapshot string) string {
	return hashWithDomain(DomainSnapshot, []byte(snapshot))
}

// InstructionDigest hashes a canonical instruction record.
func InstructionDigest(record Object) (string, error) {
	data, err := MarshalCanonical(record)
	if err != nil {
		return "", fmt.Errorf("InstructionDigest: %w", err)
	}
	return hashWithDomain(DomainInstruction, data), nil
}
