package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUIRegistry_OrderedByPriority(t *testing.T) {
	r := NewUIRegistry("player-bar-menu")
	r.Add("player-bar-menu", "a", "<span>a</span>", 50)
	r.Add("player-bar-menu", "b", "<span>b</span>", 10)
	r.Add("player-bar-menu", "c", "<span>c</span>", 20)

	entries := r.Entries("player-bar-menu")
	assert.Equal(t, []string{"b", "c", "a"}, []string{entries[0].Owner, entries[1].Owner, entries[2].Owner})
}

func TestUIRegistry_SecondAddBySameOwnerReplaces(t *testing.T) {
	r := NewUIRegistry("player-bar-menu")
	r.Add("player-bar-menu", "a", "<span>first</span>", 50)
	r.Add("player-bar-menu", "a", "<span>second</span>", 10)

	entries := r.Entries("player-bar-menu")
	assert.Len(t, entries, 1)
	assert.Equal(t, "<span>second</span>", entries[0].Fragment)
}

func TestUIRegistry_RemoveAllByOwnerPurgesEverySlot(t *testing.T) {
	r := NewUIRegistry("a", "b")
	r.Add("a", "p", "x", 1)
	r.Add("b", "p", "y", 1)
	r.Add("a", "other", "z", 1)

	r.RemoveAllByOwner("p")

	assert.Len(t, r.Entries("a"), 1)
	assert.Equal(t, "other", r.Entries("a")[0].Owner)
	assert.Empty(t, r.Entries("b"))
}

func TestSanitizeFragment_StripsScriptTags(t *testing.T) {
	out := SanitizeFragment(`<div>hi<script>alert(1)</script></div>`)
	assert.NotContains(t, out, "<script>")
}
