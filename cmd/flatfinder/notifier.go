package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fwojciec/flatfinder"
)

var _ flatfinder.Notifier = (*PrintNotifier)(nil)

// PrintNotifier writes messages to w instead of sending them. Used by
// --dry-run.
type PrintNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrintNotifier returns a PrintNotifier writing to w.
func NewPrintNotifier(w io.Writer) *PrintNotifier {
	return &PrintNotifier{w: w}
}

// Send writes message followed by a blank line. Concurrent sends do not
// interleave.
func (n *PrintNotifier) Send(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "%s\n\n", message)
	return err
}
