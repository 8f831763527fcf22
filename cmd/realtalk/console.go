package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/realtalk/internal/protocol"
)

// console renders response text on a terminal. Partial text rewrites the
// current line; final text ends it.
type console struct {
	mu   sync.Mutex
	w    io.Writer
	open bool
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

// Text implements [protocol.TextSink].
func (c *console) Text(text string, final bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\r\033[K%s", text)
	c.open = !final
	if final {
		fmt.Fprintln(c.w)
	}
}

// ServerError prints an error event on its own line.
func (c *console) ServerError(err *protocol.ServerError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLineLocked()
	fmt.Fprintf(c.w, "error: %s\n", err.Message)
}

// Close terminates a partial line left by an interrupted response.
func (c *console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLineLocked()
}

func (c *console) endLineLocked() {
	if c.open {
		fmt.Fprintln(c.w)
		c.open = false
	}
}
