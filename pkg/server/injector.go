package server

import (
	"math/rand/v2"
	"sync"
)

// FailureInjector decides whether a call to the unreliable endpoint fails.
type FailureInjector interface {
	Fail() bool
}

// FailureFunc adapts a function to FailureInjector.
type FailureFunc func() bool

// Fail implements FailureInjector.
func (f FailureFunc) Fail() bool { return f() }

// RandomInjector fails a fixed fraction of calls using its own unseeded
// PRNG, independent of the measurement generator seed.
type RandomInjector struct {
	mu   sync.Mutex
	rate float64
	rng  *rand.Rand
}

// NewRandomInjector creates an injector failing with probability rate.
func NewRandomInjector(rate float64) *RandomInjector {
	return &RandomInjector{
		rate: rate,
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Fail implements FailureInjector.
func (i *RandomInjector) Fail() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rng.Float64() < i.rate
}

// SequenceInjector replays a fixed outcome sequence, then succeeds forever.
type SequenceInjector struct {
	mu       sync.Mutex
	outcomes []bool
	calls    int
}

// NewSequenceInjector creates an injector returning outcomes in order.
func NewSequenceInjector(outcomes ...bool) *SequenceInjector {
	return &SequenceInjector{outcomes: outcomes}
}

// Fail implements FailureInjector.
func (i *SequenceInjector) Fail() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := i.calls
	i.calls++
	if n < len(i.outcomes) {
		return i.outcomes[n]
	}
	return false
}

// Calls returns how many decisions were made.
func (i *SequenceInjector) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}
