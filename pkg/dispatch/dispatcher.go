// Package dispatch binds classification labels to their handlers and runs
// the selected handler as a cooperative producer of text chunks.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/luigisaetta/oraculum/pkg/models"
)

// Handler produces the chunk stream for one request. It must emit through
// out only, and return promptly once out reports cancellation.
type Handler func(ctx context.Context, req models.UserRequest, history []models.Message, out *Emitter) error

// internalErrorChunk closes a stream whose handler failed structurally.
const internalErrorChunk = "\nSorry, an internal error occurred while serving the request.\n"

// Dispatcher routes a classified request to its handler.
type Dispatcher struct {
	handlers map[models.Label]Handler
	verbose  bool
}

// New builds a Dispatcher over the given handler set. Every dispatchable
// label must be covered; a gap is a configuration error reported here, at
// startup, not per request.
func New(hs *HandlerSet, verbose bool) (*Dispatcher, error) {
	handlers := map[models.Label]Handler{
		models.LabelGenerateSQL:    hs.handleGenerateSQL,
		models.LabelAnalyzeData:    hs.handleAnalyzeData,
		models.LabelAnswerDirectly: hs.handleAnswerDirectly,
		models.LabelNotAllowed:     hs.handleNotAllowed,
	}
	for _, label := range models.DispatchableLabels() {
		if handlers[label] == nil {
			return nil, fmt.Errorf("no handler registered for classification %q", label)
		}
	}
	return &Dispatcher{handlers: handlers, verbose: verbose}, nil
}

// SupportedLabels returns the labels the dispatcher can serve.
func (d *Dispatcher) SupportedLabels() []models.Label {
	return models.DispatchableLabels()
}

// Dispatch starts the handler for label and returns its chunk stream.
// The stream is closed when the handler terminates; recoverable handler
// failures end the stream with a diagnostic chunk instead of an error.
func (d *Dispatcher) Dispatch(ctx context.Context, label models.Label, req models.UserRequest, history []models.Message) (Stream, error) {
	handler, ok := d.handlers[label]
	if !ok {
		return nil, fmt.Errorf("no handler for classification %q", label)
	}

	if d.verbose {
		log.Printf("dispatch: routing request to handler for %s", label)
	}

	ch := make(chan string, streamBuffer)
	out := &Emitter{ctx: ctx, ch: ch}

	go func() {
		defer close(ch)
		if err := handler(ctx, req, history, out); err != nil {
			if ctx.Err() != nil {
				// Caller went away; nothing left to tell it.
				return
			}
			log.Printf("dispatch: handler for %s failed: %v", label, err)
			_ = out.Emit(internalErrorChunk)
		}
	}()

	return ch, nil
}
