// Package ratelimit implements C3: a token bucket per (plugin, channel)
// pair, where channel is one of ChannelAPICalls or ChannelStorageWrites.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Channel names the two token-bucket classes C8 consumes from.
type Channel string

const (
	ChannelAPICalls      Channel = "api-calls"
	ChannelStorageWrites Channel = "storage-writes"
)

// Params carries the capacity/refill-rate constants for one channel.
type Params struct {
	Capacity   int
	RefillRate float64 // tokens per second
}

// Limiter guards a single plugin's token buckets, one per channel. It is
// non-blocking: TryConsume returns immediately with success or failure and
// never panics or errors — a failed consume is a soft, logged condition
// handled by the caller (C8), not an exception here.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[Channel]*rate.Limiter
	params   map[Channel]Params
}

// New builds a per-plugin Limiter with the given per-channel parameters.
func New(params map[Channel]Params) *Limiter {
	l := &Limiter{
		buckets: make(map[Channel]*rate.Limiter, len(params)),
		params:  params,
	}
	for ch, p := range params {
		l.buckets[ch] = rate.NewLimiter(rate.Limit(p.RefillRate), p.Capacity)
	}
	return l
}

// TryConsume attempts to take one token from the named channel's bucket.
func (l *Limiter) TryConsume(ch Channel) bool {
	l.mu.Lock()
	b, ok := l.buckets[ch]
	l.mu.Unlock()
	if !ok {
		// No bucket configured for this channel: treat as unlimited rather
		// than denying calls a future channel hasn't been wired for yet.
		return true
	}
	return b.Allow()
}

// Reset recreates every bucket at full capacity. Used on plugin unload so a
// future load of the same name starts clean.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch, p := range l.params {
		l.buckets[ch] = rate.NewLimiter(rate.Limit(p.RefillRate), p.Capacity)
	}
}
