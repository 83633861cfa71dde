// Package netsync replicates commands across a lockstep session: one
// authoritative server orders and rebroadcasts envelopes, every peer
// buffers them per tick and executes them in the same deterministic
// order at the same logical tick.
package netsync

import (
	"sort"
	"sync"

	"railverse.dev/internal/command"
)

// TickBuffer holds envelopes scheduled for future ticks. The network
// goroutine fills it; the simulation goroutine drains it at tick
// boundaries. A tick may only be drained once the authoritative close
// marker arrived and the buffered count matches it: the simulation
// stalls on incomplete ticks instead of diverging.
type TickBuffer struct {
	mu       sync.Mutex
	pending  map[uint64][]*command.Envelope
	expected map[uint64]int
}

func NewTickBuffer() *TickBuffer {
	return &TickBuffer{
		pending:  map[uint64][]*command.Envelope{},
		expected: map[uint64]int{},
	}
}

// Put buffers an envelope for its scheduled tick.
func (b *TickBuffer) Put(env *command.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[env.Tick] = append(b.pending[env.Tick], env)
}

// Close records the authoritative command count for a tick. After
// Close no more commands arrive for it.
func (b *TickBuffer) Close(tick uint64, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expected[tick] = count
}

// Complete reports whether tick may be executed: its close marker
// arrived and every scheduled command is buffered.
func (b *TickBuffer) Complete(tick uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	want, closed := b.expected[tick]
	return closed && len(b.pending[tick]) == want
}

// Drain removes and returns the envelopes for a tick in execution
// order: by originating participant id, then sequence number (never
// network arrival order).
func (b *TickBuffer) Drain(tick uint64) []*command.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	envs := b.pending[tick]
	delete(b.pending, tick)
	delete(b.expected, tick)
	sort.SliceStable(envs, func(i, j int) bool {
		if envs[i].Origin != envs[j].Origin {
			return envs[i].Origin < envs[j].Origin
		}
		return envs[i].Seq < envs[j].Seq
	})
	return envs
}

// PendingTicks returns how many future ticks hold buffered commands.
func (b *TickBuffer) PendingTicks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
