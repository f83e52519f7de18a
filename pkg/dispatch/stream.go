package dispatch

import (
	"context"
	"fmt"
)

// streamBuffer bounds how far a producer can run ahead of its consumer.
const streamBuffer = 8

// Stream is the ordered, finite sequence of text chunks produced by one
// handler. The channel is closed when the handler terminates; termination
// is structural, there is no end-of-stream sentinel chunk.
type Stream <-chan string

// Collect drains the stream and concatenates all chunks. Intended for
// non-streaming consumers and tests.
func (s Stream) Collect() string {
	var out []byte
	for chunk := range s {
		out = append(out, chunk...)
	}
	return string(out)
}

// Emitter is the yield point handed to handlers. Every Emit honors
// cancellation, so an abandoned consumer stops the producer promptly.
type Emitter struct {
	ctx context.Context
	ch  chan<- string
}

// Emit delivers one chunk, blocking until the consumer takes it or the
// context is done.
func (e *Emitter) Emit(chunk string) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	select {
	case e.ch <- chunk:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

// Emitf formats and emits one chunk.
func (e *Emitter) Emitf(format string, args ...any) error {
	return e.Emit(fmt.Sprintf(format, args...))
}
