package dispatch

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/luigisaetta/oraculum/pkg/cache"
	"github.com/luigisaetta/oraculum/pkg/conversation"
	"github.com/luigisaetta/oraculum/pkg/models"
	"github.com/luigisaetta/oraculum/pkg/sqlagent"
)

// Streamer is the token-streaming model capability used by the chat
// handlers.
type Streamer interface {
	Stream(ctx context.Context, msgs []models.Message, emit func(string) error) error
}

// SQLCache is the slice of the semantic cache the generate_sql handler
// needs.
type SQLCache interface {
	Get(request string) (cache.Result, bool)
	Set(ctx context.Context, request, sql string, genTime time.Duration) error
	FindClosestWithinThreshold(ctx context.Context, request string, threshold float64) (string, bool, error)
}

// HandlerSet holds one handler per dispatchable label. Handlers are
// stateless across requests; all shared state lives in the cache and the
// conversation store, accessed only through their public operations.
type HandlerSet struct {
	llm       Streamer
	cache     SQLCache
	agent     sqlagent.Agent
	store     *conversation.Store
	threshold float64
	verbose   bool
}

// NewHandlerSet wires the handlers with their collaborators. threshold is
// the maximum cosine distance for reusing cached SQL.
func NewHandlerSet(llm Streamer, c SQLCache, agent sqlagent.Agent, store *conversation.Store, threshold float64, verbose bool) *HandlerSet {
	return &HandlerSet{
		llm:       llm,
		cache:     c,
		agent:     agent,
		store:     store,
		threshold: threshold,
		verbose:   verbose,
	}
}

// handleGenerateSQL serves generate_sql requests: cached SQL is reused by
// exact key or embedding similarity, otherwise the agent generates it.
// The retrieved data is appended to the conversation for follow-up
// analysis and streamed back as a markdown table, one row per chunk.
func (h *HandlerSet) handleGenerateSQL(ctx context.Context, req models.UserRequest, _ []models.Message, out *Emitter) error {
	if err := out.Emitf("Generating SQL for: %s\n\n", req.RequestText); err != nil {
		return err
	}

	var sqlText string
	if res, found := h.cache.Get(req.RequestText); found && !res.Failed {
		sqlText = res.SQL
		if h.verbose {
			log.Printf("dispatch: exact cache hit for %q", req.RequestText)
		}
	}

	if sqlText == "" {
		// Near-duplicate lookup. An embedding failure here is structural
		// and aborts the handler.
		closest, ok, err := h.cache.FindClosestWithinThreshold(ctx, req.RequestText, h.threshold)
		if err != nil {
			return err
		}
		if ok {
			sqlText = closest
			if h.verbose {
				log.Printf("dispatch: similarity cache hit for %q", req.RequestText)
			}
		}
	}

	if sqlText == "" {
		start := time.Now()
		generated, err := h.agent.GenerateSQL(ctx, req.RequestText)
		if err != nil {
			log.Printf("dispatch: sql generation failed: %v", err)
			// Record the failure so it shows up in the failed-requests
			// report instead of vanishing.
			if serr := h.cache.Set(ctx, req.RequestText, "", 0); serr != nil {
				return serr
			}
			return out.Emit("Sorry, I could not generate SQL for this request.\n")
		}
		if err := h.cache.Set(ctx, req.RequestText, generated, time.Since(start)); err != nil {
			return err
		}
		sqlText = generated
	}

	rs, err := h.agent.ExecuteSQL(ctx, sqlText)
	if err != nil {
		log.Printf("dispatch: sql execution failed: %v", err)
		return out.Emit("The generated SQL could not be executed. No rows returned.\n")
	}

	if rs.Empty() {
		return out.Emit("No rows returned.\n")
	}

	chunks := tableChunks(rs)

	// Make the data available to analyze_data follow-ups.
	h.store.Append(req.ConvID, models.SystemMessage(
		"Data retrieved from the database:\n"+strings.Join(chunks, "")))

	for _, chunk := range chunks {
		if err := out.Emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

// handleAnalyzeData asks the model to analyze data already present in the
// conversation, forwarding the token stream without buffering.
func (h *HandlerSet) handleAnalyzeData(ctx context.Context, req models.UserRequest, history []models.Message, out *Emitter) error {
	if err := out.Emitf("Analyzing data for: %s\n\n", req.RequestText); err != nil {
		return err
	}
	return h.streamChat(ctx, preambleAnalyzeData, req, history, out)
}

// handleAnswerDirectly sends the request straight to the chat model.
func (h *HandlerSet) handleAnswerDirectly(ctx context.Context, req models.UserRequest, history []models.Message, out *Emitter) error {
	if err := out.Emitf("Request: %s\n", req.RequestText); err != nil {
		return err
	}
	if err := out.Emit("Answer in preparation...\n\n"); err != nil {
		return err
	}
	return h.streamChat(ctx, preambleAnswerDirectly, req, history, out)
}

// handleNotAllowed refuses DDL/DML requests. Deterministic, no external
// calls.
func (h *HandlerSet) handleNotAllowed(_ context.Context, req models.UserRequest, _ []models.Message, out *Emitter) error {
	if err := out.Emitf("Request: %s not allowed\n", req.RequestText); err != nil {
		return err
	}
	return out.Emit("DDL/DML requests are not allowed!\n")
}

// streamChat assembles preamble + history + request and forwards the
// model's tokens. A model failure becomes a diagnostic chunk; the stream
// still completes normally.
func (h *HandlerSet) streamChat(ctx context.Context, preamble string, req models.UserRequest, history []models.Message, out *Emitter) error {
	msgs := make([]models.Message, 0, len(history)+2)
	msgs = append(msgs, models.SystemMessage(preamble))
	msgs = append(msgs, history...)
	msgs = append(msgs, models.HumanMessage(req.RequestText))

	if err := h.llm.Stream(ctx, msgs, out.Emit); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("dispatch: model stream failed: %v", err)
		return out.Emit("\nSorry, the model is not available right now. Please retry later.\n")
	}
	return nil
}
