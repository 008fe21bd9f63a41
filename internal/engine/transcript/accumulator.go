// Package transcript folds decoded deltas into the single growing string a
// caller renders while an assistant turn is in flight.
package transcript

import (
	"errors"
	"strings"
	"sync"
)

// ErrAlreadyFinalized is a defect signal, not a runtime condition: an append
// after Finalize means a stale stream outlived its cancellation.
var ErrAlreadyFinalized = errors.New("transcript: append after finalize")

// Accumulator concatenates deltas strictly in arrival order, with no added
// separators and no deduplication. Observers see every change without
// polling.
type Accumulator struct {
	mu        sync.Mutex
	b         strings.Builder
	finalized bool
	observers []func(partial string)
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// OnChange registers an observer called with the full partial text after
// every append. Registration order is notification order.
func (a *Accumulator) OnChange(fn func(partial string)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

func (a *Accumulator) Append(delta string) error {
	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		return ErrAlreadyFinalized
	}
	a.b.WriteString(delta)
	partial := a.b.String()
	observers := a.observers
	a.mu.Unlock()

	for _, fn := range observers {
		fn(partial)
	}
	return nil
}

// Partial returns the text accumulated so far.
func (a *Accumulator) Partial() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.b.String()
}

// Finalize freezes the accumulated text and returns it. Finalize is
// idempotent; only Append is an error afterwards.
func (a *Accumulator) Finalize() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	return a.b.String()
}

func (a *Accumulator) Finalized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalized
}
