// Package classify maps free-text user requests to one of the closed set
// of intent labels, using an LLM constrained to a JSON answer. Any failure
// along the way degrades to the not_defined label: classification never
// surfaces an error to its caller and never touches shared state.
package classify

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/luigisaetta/oraculum/pkg/models"
)

// ChatModel is the structured-output capability the classifier needs.
type ChatModel interface {
	CompleteJSON(ctx context.Context, msgs []models.Message) (string, error)
}

// Classifier decides what kind of action a user request asks for.
type Classifier struct {
	model   ChatModel
	verbose bool
}

// New creates a Classifier backed by the given model.
func New(model ChatModel, verbose bool) *Classifier {
	return &Classifier{model: model, verbose: verbose}
}

// Classify returns the label for request. Blank input is rejected before
// any model call.
func (c *Classifier) Classify(ctx context.Context, request string) models.Label {
	if strings.TrimSpace(request) == "" {
		log.Printf("classify: invalid request, must be a non-empty string")
		return models.LabelNotDefined
	}

	msgs := []models.Message{
		models.SystemMessage(routingPrompt()),
		models.HumanMessage(request),
	}

	raw, err := c.model.CompleteJSON(ctx, msgs)
	if err != nil {
		log.Printf("classify: model call failed: %v", err)
		return models.LabelNotDefined
	}

	if c.verbose {
		log.Printf("classify: model answer: %s", raw)
	}

	label, ok := parseClassification(raw)
	if !ok {
		log.Printf("classify: could not parse model answer: %s", raw)
		return models.LabelNotDefined
	}
	if !label.Valid() {
		log.Printf("classify: value not in allowed set: %s", label)
		return models.LabelNotDefined
	}
	return label
}

// parseClassification extracts the classification value from the model's
// JSON answer, tolerating markdown code fences around the object.
func parseClassification(raw string) (models.Label, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out struct {
		Classification string `json:"classification"`
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return "", false
	}
	if out.Classification == "" {
		return "", false
	}
	return models.Label(out.Classification), true
}
