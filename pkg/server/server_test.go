package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luigisaetta/oraculum/pkg/audit"
	"github.com/luigisaetta/oraculum/pkg/cache"
	"github.com/luigisaetta/oraculum/pkg/classify"
	"github.com/luigisaetta/oraculum/pkg/config"
	"github.com/luigisaetta/oraculum/pkg/conversation"
	"github.com/luigisaetta/oraculum/pkg/dispatch"
	"github.com/luigisaetta/oraculum/pkg/models"
	"github.com/luigisaetta/oraculum/pkg/router"
)

type fakeChatModel struct {
	label string
	calls int
}

func (m *fakeChatModel) CompleteJSON(ctx context.Context, msgs []models.Message) (string, error) {
	m.calls++
	return fmt.Sprintf(`{"classification": %q}`, m.label), nil
}

type fakeStreamer struct {
	tokens []string
}

func (s *fakeStreamer) Stream(ctx context.Context, msgs []models.Message, emit func(string) error) error {
	for _, tok := range s.tokens {
		if err := emit(tok); err != nil {
			return err
		}
	}
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeAgent struct {
	sql    string
	result models.ResultSet
}

func (a *fakeAgent) GenerateSQL(ctx context.Context, nlRequest string) (string, error) {
	return a.sql, nil
}
func (a *fakeAgent) CheckSQL(ctx context.Context, sqlText string) error { return nil }
func (a *fakeAgent) ExecuteSQL(ctx context.Context, sqlText string) (models.ResultSet, error) {
	return a.result, nil
}
func (a *fakeAgent) Close() error { return nil }

type fixture struct {
	srv   *httptest.Server
	store *conversation.Store
	cache *cache.Cache
	model *fakeChatModel
}

func setupServer(t *testing.T, label string, tokens []string) *fixture {
	t.Helper()

	cfg := config.Default()
	model := &fakeChatModel{label: label}
	streamer := &fakeStreamer{tokens: tokens}
	c := cache.New(fakeEmbedder{}, 100)
	store := conversation.New(10, false)
	agent := &fakeAgent{
		sql:    "SELECT region, total FROM sales",
		result: models.ResultSet{Columns: []string{"region"}, Rows: [][]any{{"EU"}}},
	}

	hs := dispatch.NewHandlerSet(streamer, c, agent, store, 0.05, false)
	d, err := dispatch.New(hs, false)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	rt := router.New(classify.New(model, false), d, false)

	auditor, err := audit.New(models.AuditConfig{Enabled: false})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	s := New(cfg, rt, store, c, auditor)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return &fixture{srv: ts, store: store, cache: c, model: model}
}

func postChat(t *testing.T, f *fixture, convID, text string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(models.UserRequest{ConvID: convID, RequestText: text})
	resp, err := http.Post(f.srv.URL+"/streaming_chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /streaming_chat: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStreamingChat(t *testing.T) {
	f := setupServer(t, "answer_directly", []string{"Larry ", "Ellison ", "founded Oracle."})

	resp := postChat(t, f, "conv-1", "Who founded Oracle?")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Classification"); got != "answer_directly" {
		t.Errorf("got classification header %q, want answer_directly", got)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "founded Oracle.") {
		t.Errorf("body missing streamed tokens: %q", body)
	}

	// Both sides of the exchange end up in the conversation.
	history := f.store.Get("conv-1")
	if len(history) != 2 {
		t.Fatalf("got %d history messages, want 2", len(history))
	}
	if history[0].Role != models.RoleHuman || history[0].Content != "Who founded Oracle?" {
		t.Errorf("got first message %+v, want the human request", history[0])
	}
	if history[1].Role != models.RoleAI {
		t.Errorf("got second message role %q, want %q", history[1].Role, models.RoleAI)
	}
}

func TestStreamingChatBlankRequest(t *testing.T) {
	f := setupServer(t, "answer_directly", nil)

	resp := postChat(t, f, "conv-1", "   ")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
	if f.model.calls != 0 {
		t.Errorf("classifier called %d times for blank request, want 0", f.model.calls)
	}
	if f.store.Len() != 0 {
		t.Errorf("blank request stored in conversation")
	}
}

func TestStreamingChatInvalidBody(t *testing.T) {
	f := setupServer(t, "answer_directly", nil)

	resp, err := http.Post(f.srv.URL+"/streaming_chat", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
}

func TestStreamingChatAssignsConvID(t *testing.T) {
	f := setupServer(t, "not_allowed", nil)

	resp := postChat(t, f, "", "Drop the table employees.")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Conv-ID") == "" {
		t.Error("no conversation id assigned for empty conv_id")
	}
}

func TestDeleteConversation(t *testing.T) {
	f := setupServer(t, "answer_directly", []string{"ok"})
	f.store.Append("conv-9", models.HumanMessage("hello"))

	req, _ := http.NewRequest(http.MethodDelete, f.srv.URL+"/conversation/conv-9", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if f.store.Len() != 0 {
		t.Error("conversation not cleared")
	}

	// Deleting again is a 404.
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d for unknown conversation, want 404", resp2.StatusCode)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	f := setupServer(t, "generate_sql", nil)

	// One full request populates the cache.
	resp := postChat(t, f, "conv-1", "show sales by region")
	io.Copy(io.Discard, resp.Body)

	statsResp, err := http.Get(f.srv.URL + "/cache/stats")
	if err != nil {
		t.Fatalf("GET /cache/stats: %v", err)
	}
	defer statsResp.Body.Close()
	if statsResp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", statsResp.StatusCode)
	}

	var stats models.CacheStats
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("got %d cache entries, want 1", stats.Entries)
	}
}

func TestCacheFailedEndpointEmpty(t *testing.T) {
	f := setupServer(t, "answer_directly", nil)

	resp, err := http.Get(f.srv.URL + "/cache/failed")
	if err != nil {
		t.Fatalf("GET /cache/failed: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		FailedRequests []string `json:"failed_requests"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.FailedRequests == nil || len(out.FailedRequests) != 0 {
		t.Errorf("got %v, want empty list", out.FailedRequests)
	}
}

func TestHealthz(t *testing.T) {
	f := setupServer(t, "answer_directly", nil)

	resp, err := http.Get(f.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
}
