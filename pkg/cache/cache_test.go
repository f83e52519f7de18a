package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeEmbedder returns fixed vectors for known texts and a per-text
// deterministic vector otherwise.
type fakeEmbedder struct {
	vectors map[string][]float32
	fail    bool
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	// Arbitrary but stable: spread unknown texts apart.
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, 1, 0}, nil
}

func newTestCache(t *testing.T, maxSize int) (*Cache, *fakeEmbedder) {
	t.Helper()
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	return New(emb, maxSize), emb
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	if err := c.Set(ctx, "total sales by region", "SELECT region, SUM(sales) FROM sales GROUP BY region", 2*time.Second); err != nil {
		t.Fatal(err)
	}

	res, ok := c.Get("total sales by region")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if res.SQL != "SELECT region, SUM(sales) FROM sales GROUP BY region" {
		t.Errorf("unexpected SQL: %s", res.SQL)
	}
	if res.Failed {
		t.Error("entry should not be marked failed")
	}
	if len(res.Embedding) == 0 {
		t.Error("expected stored embedding")
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t, 10)

	if _, ok := c.Get("never seen"); ok {
		t.Error("expected miss for unknown request")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestGetIncrementsAccessCount(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	if err := c.Set(ctx, "q1", "SELECT 1", time.Second); err != nil {
		t.Fatal(err)
	}
	c.Get("q1")
	c.Get("q1")

	stats := c.Stats()
	if len(stats.Detail) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(stats.Detail))
	}
	// 1 at insertion plus 2 hits
	if got := stats.Detail[0].AccessCount; got != 3 {
		t.Errorf("expected access count 3, got %d", got)
	}
}

func TestFailureRecordedForNewEntry(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	if err := c.Set(ctx, "impossible request", "", 0); err != nil {
		t.Fatal(err)
	}

	res, ok := c.Get("impossible request")
	if !ok {
		t.Fatal("failed entry should still exist")
	}
	if !res.Failed || res.SQL != "" {
		t.Errorf("expected failed entry, got %+v", res)
	}

	failed := c.FailedRequests()
	if len(failed) != 1 || failed[0] != "impossible request" {
		t.Errorf("unexpected failed requests: %v", failed)
	}
}

func TestFailureDoesNotOverwriteSuccess(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	if err := c.Set(ctx, "q1", "SELECT 1", time.Second); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "q1", "", 0); err != nil {
		t.Fatal(err)
	}

	res, ok := c.Get("q1")
	if !ok || res.SQL != "SELECT 1" || res.Failed {
		t.Errorf("success was overwritten by failure: %+v", res)
	}
}

func TestSuccessOverwritesFailure(t *testing.T) {
	c, _ := newTestCache(t, 10)
	ctx := context.Background()

	if err := c.Set(ctx, "q1", "", 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "q1", "SELECT 1", time.Second); err != nil {
		t.Fatal(err)
	}

	res, ok := c.Get("q1")
	if !ok || res.SQL != "SELECT 1" || res.Failed {
		t.Errorf("expected updated entry, got %+v", res)
	}
	if len(c.FailedRequests()) != 0 {
		t.Error("entry should no longer be listed as failed")
	}
}

func TestCacheBound(t *testing.T) {
	c, _ := newTestCache(t, 5)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if err := c.Set(ctx, fmt.Sprintf("request %d", i), fmt.Sprintf("SELECT %d", i), time.Second); err != nil {
			t.Fatal(err)
		}
		if got := c.Len(); got > 5 {
			t.Fatalf("cache exceeded max size: %d", got)
		}
	}
	if got := c.Len(); got != 5 {
		t.Errorf("expected 5 entries, got %d", got)
	}
}

func TestEvictionLowestAccessCount(t *testing.T) {
	c, _ := newTestCache(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("request %d", i), "SELECT 1", time.Second); err != nil {
			t.Fatal(err)
		}
	}
	// Boost two entries so "request 1" has the lowest count.
	c.Get("request 0")
	c.Get("request 0")
	c.Get("request 2")

	if err := c.Set(ctx, "request 3", "SELECT 1", time.Second); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("request 1"); ok {
		t.Error("lowest-count entry should have been evicted")
	}
	for _, r := range []string{"request 0", "request 2", "request 3"} {
		if _, ok := c.Get(r); !ok {
			t.Errorf("entry %q should have survived eviction", r)
		}
	}
}

func TestFindClosestSelf(t *testing.T) {
	c, emb := newTestCache(t, 10)
	ctx := context.Background()
	emb.vectors["show all employees"] = []float32{1, 0, 0}

	if err := c.Set(ctx, "show all employees", "SELECT * FROM employees", time.Second); err != nil {
		t.Fatal(err)
	}

	req, sql, distance, err := c.FindClosest(ctx, "show all employees")
	if err != nil {
		t.Fatal(err)
	}
	if req != "show all employees" || sql != "SELECT * FROM employees" {
		t.Errorf("unexpected candidate: %q / %q", req, sql)
	}
	if distance > 1e-9 {
		t.Errorf("expected distance 0 against own entry, got %g", distance)
	}
}

func TestFindClosestEmptyCache(t *testing.T) {
	c, _ := newTestCache(t, 10)

	req, sql, distance, err := c.FindClosest(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if req != "" || sql != "" {
		t.Error("expected no candidate from empty cache")
	}
	if !math.IsInf(distance, 1) {
		t.Errorf("expected +Inf distance, got %g", distance)
	}
}

func TestFindClosestWithinThreshold(t *testing.T) {
	c, emb := newTestCache(t, 10)
	ctx := context.Background()
	emb.vectors["total sales by region"] = []float32{1, 0, 0}
	emb.vectors["sales total per region"] = []float32{0.99, 0.1, 0}
	emb.vectors["list all suppliers"] = []float32{0, 1, 0}

	if err := c.Set(ctx, "total sales by region", "SELECT region, SUM(sales)", time.Second); err != nil {
		t.Fatal(err)
	}

	// Near-duplicate within a loose threshold
	sql, ok, err := c.FindClosestWithinThreshold(ctx, "sales total per region", 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || sql != "SELECT region, SUM(sales)" {
		t.Errorf("expected near-duplicate hit, got ok=%v sql=%q", ok, sql)
	}

	// Unrelated request stays a miss
	if _, ok, _ := c.FindClosestWithinThreshold(ctx, "list all suppliers", 0.1); ok {
		t.Error("expected miss for unrelated request")
	}

	// Threshold 0 only matches embedding-identical requests
	if _, ok, _ := c.FindClosestWithinThreshold(ctx, "sales total per region", 0); ok {
		t.Error("expected miss at threshold 0 for a paraphrase")
	}
	if sql, ok, _ := c.FindClosestWithinThreshold(ctx, "total sales by region", 0); !ok || sql == "" {
		t.Error("expected hit at threshold 0 for identical request")
	}
}

func TestFailedEntryNeverSimilarityHit(t *testing.T) {
	c, emb := newTestCache(t, 10)
	ctx := context.Background()
	emb.vectors["doomed request"] = []float32{1, 0, 0}

	if err := c.Set(ctx, "doomed request", "", 0); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := c.FindClosestWithinThreshold(ctx, "doomed request", 0.5); ok {
		t.Error("failed entry must not be returned as a similarity hit")
	}
}

func TestEmbedderFailureFailsSet(t *testing.T) {
	emb := &fakeEmbedder{fail: true}
	c := New(emb, 10)

	if err := c.Set(context.Background(), "q1", "SELECT 1", time.Second); err == nil {
		t.Fatal("expected error when embedder fails")
	}
	if c.Len() != 0 {
		t.Error("no entry should be stored after a failed embedding")
	}
}

func TestEmbedderFailureFailsFindClosest(t *testing.T) {
	emb := &fakeEmbedder{fail: true}
	c := New(emb, 10)

	if _, _, _, err := c.FindClosest(context.Background(), "q1"); err == nil {
		t.Fatal("expected error when embedder fails")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				req := fmt.Sprintf("request %d-%d", n, j%5)
				_ = c.Set(ctx, req, "SELECT 1", time.Millisecond)
				c.Get(req)
			}
		}(i)
	}
	wg.Wait()

	if got := c.Len(); got > 50 {
		t.Errorf("cache exceeded max size under concurrency: %d", got)
	}
}
