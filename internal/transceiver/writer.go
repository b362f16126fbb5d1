package transceiver

import (
	"io"
	"sync"

	"github.com/muurk/maxcul/internal/transport"
)

// lineWriter writes lines to the port from its own goroutine so that Send
// never blocks the command queue.
type lineWriter struct {
	w       io.Writer
	onError func(error)

	mu      sync.Mutex
	pending []string
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

func newLineWriter(w io.Writer, onError func(error)) *lineWriter {
	lw := &lineWriter{
		w:       w,
		onError: onError,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go lw.run()
	return lw
}

// Send queues line for writing.
func (lw *lineWriter) Send(line string) {
	lw.mu.Lock()
	lw.pending = append(lw.pending, line)
	lw.mu.Unlock()

	select {
	case lw.wake <- struct{}{}:
	default:
	}
}

// Close stops the writer after the lines already queued are written.
func (lw *lineWriter) Close() {
	select {
	case <-lw.stop:
	default:
		close(lw.stop)
	}
	<-lw.done
}

func (lw *lineWriter) run() {
	defer close(lw.done)
	for {
		select {
		case <-lw.wake:
			if !lw.flush() {
				return
			}
		case <-lw.stop:
			lw.flush()
			return
		}
	}
}

// flush writes every queued line. It reports false after a write error.
func (lw *lineWriter) flush() bool {
	lw.mu.Lock()
	lines := lw.pending
	lw.pending = nil
	lw.mu.Unlock()

	for _, line := range lines {
		if _, err := io.WriteString(lw.w, line+transport.Terminator); err != nil {
			lw.onError(err)
			return false
		}
	}
	return true
}
