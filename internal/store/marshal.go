package store

import (
	"fmt"

	"github.com/roach88/splice/internal/engine"
	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/tree"
)

// marshalRecord converts a record to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalRecord(rec ir.Object) (string, error) {
	data, err := ir.MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses canonical JSON TEXT back into a record.
// Large integers survive because ir.UnmarshalValue decodes with json.Number.
func unmarshalRecord(data string) (ir.Object, error) {
	if data == "" {
		return nil, fmt.Errorf("unmarshal record: empty")
	}
	var obj ir.Object
	if err := obj.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return obj, nil
}

// instructionFromRecord rebuilds an instruction from its canonical record.
// The record does not carry seq; it is stored in its own column.
func instructionFromRecord(rec ir.Object, seq int64) (engine.Instruction, error) {
	in := engine.Instruction{Seq: seq}

	op, ok := rec["op"].(ir.String)
	if !ok {
		return in, fmt.Errorf("instruction record: op missing or not a string")
	}
	in.Op = engine.Op(op)

	node, ok := rec["node"].(ir.Int)
	if !ok {
		return in, fmt.Errorf("instruction record: node missing or not an integer")
	}
	in.Node = tree.Handle(node)

	handles := []struct {
		key string
		dst *tree.Handle
	}{
		{"parent", &in.Parent},
		{"after", &in.After},
		{"other", &in.Other},
	}
	for _, h := range handles {
		v, present := rec[h.key]
		if !present {
			continue
		}
		n, ok := v.(ir.Int)
		if !ok {
			return in, fmt.Errorf("instruction record: %s is not an integer", h.key)
		}
		*h.dst = tree.Handle(n)
	}

	if v, present := rec["tag"]; present {
		tag, ok := v.(ir.String)
		if !ok {
			return in, fmt.Errorf("instruction record: tag is not a string")
		}
		in.Tag = string(tag)
	}
	if v, present := rec["text"]; present {
		text, ok := v.(ir.String)
		if !ok {
			return in, fmt.Errorf("instruction record: text is not a string")
		}
		in.Text = string(text)
	}
	if v, present := rec["props"]; present {
		props, ok := v.(ir.Object)
		if !ok {
			return in, fmt.Errorf("instruction record: props is not an object")
		}
		in.Props = props
	}
	if v, present := rec["replace"]; present {
		b, ok := v.(ir.Bool)
		if !ok {
			return in, fmt.Errorf("instruction record: replace is not a boolean")
		}
		in.Replace = bool(b)
	}
	return in, nil
}
