// Package progress carries fractional progress from a worker goroutine to the
// goroutine that owns presentation state.
package progress

import "sync"

// Func receives a completion fraction in [0, 1].
type Func func(fraction float64)

// Nop discards progress.
func Nop(float64) {}

// Update is one posted value. Tag names the operation that posted it so a
// consumer can drop values that outlived their operation.
type Update struct {
	Tag      string
	Fraction float64
}

// Mailbox is a single-slot, latest-wins channel. Post never blocks: an
// undelivered value is replaced by a newer one. Values lower than the last
// posted value are dropped so observers only ever see progress move forward.
type Mailbox struct {
	mu   sync.Mutex
	last float64
	ch   chan Update
}

func NewMailbox() *Mailbox {
	return &Mailbox{last: -1, ch: make(chan Update, 1)}
}

// Post publishes an untagged fraction, clamped to [0, 1].
func (m *Mailbox) Post(fraction float64) {
	m.post(Update{Fraction: fraction})
}

func (m *Mailbox) post(u Update) {
	u.Fraction = Clamp(u.Fraction)

	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Fraction < m.last {
		return
	}
	m.last = u.Fraction

	select {
	case <-m.ch:
	default:
	}
	m.ch <- u
}

// Reset lets the next operation start again from zero. Any pending value is discarded.
func (m *Mailbox) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = -1
	select {
	case <-m.ch:
	default:
	}
}

// C is drained by the consumer.
func (m *Mailbox) C() <-chan Update {
	return m.ch
}

// Func adapts the mailbox to an untagged progress callback.
func (m *Mailbox) Func() Func {
	return m.Post
}

// Tagged returns a progress callback whose values carry tag.
func (m *Mailbox) Tagged(tag string) Func {
	return func(fraction float64) {
		m.post(Update{Tag: tag, Fraction: fraction})
	}
}

func Clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Percent converts a fraction to a whole percentage for storage and display.
func Percent(f float64) int {
	return int(Clamp(f)*100 + 0.5)
}
