package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopedStorage_SetThenGetSync(t *testing.T) {
	s := NewScopedStorage(nil)
	ok := s.Set("p", "theme", "dark")
	assert.True(t, ok)

	v, found := s.Get("p", "theme")
	assert.True(t, found)
	assert.Equal(t, "dark", v)
}

func TestScopedStorage_NamespacedByPlugin(t *testing.T) {
	s := NewScopedStorage(nil)
	s.Set("a", "k", "from-a")
	s.Set("b", "k", "from-b")

	va, _ := s.Get("a", "k")
	vb, _ := s.Get("b", "k")
	assert.Equal(t, "from-a", va)
	assert.Equal(t, "from-b", vb)
}

func TestScopedStorage_ClearRemovesAllKeysAndReturnsCount(t *testing.T) {
	s := NewScopedStorage(nil)
	s.Set("p", "k1", "v1")
	s.Set("p", "k2", "v2")
	s.Set("p", "k3", "v3")

	n := s.Clear("p")
	assert.Equal(t, 3, n)

	_, found := s.Get("p", "k1")
	assert.False(t, found)
}

func TestScopedStorage_GetAbsentKeyReturnsFalse(t *testing.T) {
	s := NewScopedStorage(nil)
	_, found := s.Get("p", "nope")
	assert.False(t, found)
}
