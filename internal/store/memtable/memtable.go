// Package memtable is an in-process store.Table used for dev mode and tests.
package memtable

import (
	"context"
	"sync"
	"time"
)

// Table keeps appended rows in memory.
type Table struct {
	mu    sync.Mutex
	rows  [][]string
	calls int
	err   error
	delay time.Duration
}

// Option configures a Table.
type Option func(*Table)

// FailWith makes every AppendRow return err without storing the row.
func FailWith(err error) Option {
	return func(t *Table) {
		t.err = err
	}
}

// WithDelay makes AppendRow block for d, or until ctx ends.
func WithDelay(d time.Duration) Option {
	return func(t *Table) {
		t.delay = d
	}
}

// New creates an empty table.
func New(opts ...Option) *Table {
	t := &Table{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AppendRow implements store.Table.
func (t *Table) AppendRow(ctx context.Context, row []string) error {
	t.mu.Lock()
	t.calls++
	delay, err := t.delay, t.err
	t.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	cp := make([]string, len(row))
	copy(cp, row)

	t.mu.Lock()
	t.rows = append(t.rows, cp)
	t.mu.Unlock()
	return nil
}

// Rows returns a copy of every stored row in append order.
func (t *Table) Rows() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Calls returns how many times AppendRow was called, including failures.
func (t *Table) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// SetError changes the injected failure; nil restores normal appends.
func (t *Table) SetError(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}
