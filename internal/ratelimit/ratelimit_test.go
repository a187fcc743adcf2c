package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_CapacityThenDenied(t *testing.T) {
	l := New(map[Channel]Params{
		ChannelAPICalls: {Capacity: 3, RefillRate: 0},
	})

	assert.True(t, l.TryConsume(ChannelAPICalls))
	assert.True(t, l.TryConsume(ChannelAPICalls))
	assert.True(t, l.TryConsume(ChannelAPICalls))
	assert.False(t, l.TryConsume(ChannelAPICalls))
}

func TestLimiter_UnconfiguredChannelUnlimited(t *testing.T) {
	l := New(map[Channel]Params{ChannelAPICalls: {Capacity: 1, RefillRate: 0}})
	for i := 0; i < 10; i++ {
		assert.True(t, l.TryConsume(ChannelStorageWrites))
	}
}

func TestLimiter_ResetRefillsCapacity(t *testing.T) {
	l := New(map[Channel]Params{ChannelAPICalls: {Capacity: 1, RefillRate: 0}})
	assert.True(t, l.TryConsume(ChannelAPICalls))
	assert.False(t, l.TryConsume(ChannelAPICalls))
	l.Reset()
	assert.True(t, l.TryConsume(ChannelAPICalls))
}
