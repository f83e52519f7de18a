// Package router orchestrates classification and dispatch for inbound
// chat requests.
package router

import (
	"context"
	"log"

	"github.com/luigisaetta/oraculum/pkg/classify"
	"github.com/luigisaetta/oraculum/pkg/dispatch"
	"github.com/luigisaetta/oraculum/pkg/models"
)

// notDefinedResponse is the fixed fallback when classification is
// inconclusive. No handler is invoked for it.
const notDefinedResponse = "Unable to classify the request.\n"

// Router classifies a request and hands it to the dispatcher.
type Router struct {
	classifier *classify.Classifier
	dispatcher *dispatch.Dispatcher
	verbose    bool
}

// New creates a Router.
func New(classifier *classify.Classifier, dispatcher *dispatch.Dispatcher, verbose bool) *Router {
	return &Router{classifier: classifier, dispatcher: dispatcher, verbose: verbose}
}

// Route classifies the request and returns the handler's chunk stream
// together with the label that was selected. An inconclusive
// classification yields a fixed single-chunk stream.
func (r *Router) Route(ctx context.Context, req models.UserRequest, history []models.Message) (dispatch.Stream, models.Label, error) {
	label := r.classifier.Classify(ctx, req.RequestText)
	if r.verbose {
		log.Printf("router: request classified as %s", label)
	}

	if label == models.LabelNotDefined {
		ch := make(chan string, 1)
		ch <- notDefinedResponse
		close(ch)
		return ch, label, nil
	}

	stream, err := r.dispatcher.Dispatch(ctx, label, req, history)
	if err != nil {
		return nil, label, err
	}
	return stream, label, nil
}
