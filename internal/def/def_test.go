package def

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/ir"
)

func TestTag_Comparable(t *testing.T) {
	card := &Type{Name: "Card"}
	other := &Type{Name: "Card"}

	seen := map[Tag]int{
		ElementTag("div"):  1,
		ComponentTag(card): 2,
		PassTag:            3,
	}
	assert.Equal(t, 1, seen[ElementTag("div")])
	assert.Equal(t, 2, seen[ComponentTag(card)])
	assert.Zero(t, seen[ComponentTag(other)], "components match by type identity, not name")
	assert.Equal(t, "component:Card", ComponentTag(card).String())
	assert.Equal(t, "element:div", ElementTag("div").String())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		out  any
		want int
	}{
		{"nil", nil, 0},
		{"def", El("div", nil), 1},
		{"slice", []*Def{Text("a"), Text("b")}, 2},
		{"string", "hello", 1},
		{"value", ir.Int(3), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.out)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := Normalize(struct{}{})
	assert.Error(t, err)
}

func TestHasPass(t *testing.T) {
	assert.False(t, El("div", nil, Text("x")).HasPass())
	assert.True(t, El("div", nil, Fragment(StreamPass("s"))).HasPass())
}

func TestCopyIsKeyedByDup(t *testing.T) {
	d := Copy("closure", "left")
	assert.Equal(t, "left", d.Key)
	assert.Equal(t, "left", d.Dup)
	assert.Equal(t, KindPass, d.Tag.Kind())
}
