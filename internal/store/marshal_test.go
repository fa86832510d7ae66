package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
)

func TestUnmarshalRecord_Empty(t *testing.T) {
	_, err := unmarshalRecord("")
	assert.Error(t, err)
}

func TestUnmarshalRecord_LargeInt(t *testing.T) {
	rec, err := unmarshalRecord(`{"node":9007199254740993,"op":"remove"}`)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(9007199254740993), rec["node"])
}

func TestInstructionFromRecord(t *testing.T) {
	in, err := instructionFromRecord(ir.Object{
		"op":      ir.String("update"),
		"node":    ir.Int(4),
		"props":   ir.Object{"a": ir.Null{}},
		"replace": ir.Bool(true),
	}, 12)
	require.NoError(t, err)
	assert.Equal(t, engine.Instruction{
		Seq: 12, Op: engine.OpUpdate, Node: 4,
		Props: ir.Object{"a": ir.Null{}}, Replace: true,
	}, in)
}

func TestInstructionFromRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rec  ir.Object
	}{
		{"missing op", ir.Object{"node": ir.Int(1)}},
		{"missing node", ir.Object{"op": ir.String("remove")}},
		{"node not int", ir.Object{"op": ir.String("remove"), "node": ir.String("1")}},
		{"parent not int", ir.Object{"op": ir.String("move"), "node": ir.Int(1), "parent": ir.Bool(true)}},
		{"tag not string", ir.Object{"op": ir.String("create"), "node": ir.Int(1), "tag": ir.Int(3)}},
		{"props not object", ir.Object{"op": ir.String("update"), "node": ir.Int(1), "props": ir.Array{}}},
		{"replace not bool", ir.Object{"op": ir.String("update"), "node": ir.Int(1), "replace": ir.Int(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := instructionFromRecord(tt.rec, 1)
			assert.Error(t, err)
		})
	}
}
