// Package ir provides the value types shared by every other splice package.
//
// Props, component state and the declarative node descriptions loaded from
// YAML scenarios or CUE views are all expressed with the sealed Value
// interface. ir imports nothing internal, so it stays the foundational layer.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Object keys are ordered by UTF-16 code units when serialized
//   - Structural comparison is depth-bounded (see EqualDepth)
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing
package ir
