package orderedmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapKeepsInsertionOrder(t *testing.T) {
	m := New[string, int]()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("c", 3)
	m.Set("b", 4)

	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	m.Delete("a")
	assert.Equal(t, []string{"b", "c"}, m.Keys())
	assert.Equal(t, 2, m.Len())
}

func TestMapCloneAndMerge(t *testing.T) {
	base := New[string, string]()
	base.Set("x", "1")
	base.Set("y", "2")

	c := base.Clone()
	over := New[string, string]()
	over.Set("y", "20")
	over.Set("z", "30")
	c.Merge(over)

	assert.Equal(t, []string{"x", "y"}, base.Keys())
	assert.Equal(t, []string{"x", "y", "z"}, c.Keys())
	v, _ := c.Get("y")
	assert.Equal(t, "20", v)
}

func TestNilMap(t *testing.T) {
	var m *Map[string, int]
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Keys())
	assert.False(t, m.Has("x"))
}
