// Package cache implements the in-memory semantic cache mapping natural
// language requests to generated SQL. Entries are found by exact key or by
// embedding similarity, and evicted by lowest access count when the cache
// grows past its configured size.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luigisaetta/oraculum/pkg/models"
)

// Embedder computes a fixed-length vector for a text. An error from the
// embedder fails the cache operation that needed it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is the outcome of an exact-key lookup. Failed marks an entry that
// recorded an unsuccessful SQL generation: the entry exists, but there is no
// SQL to reuse.
type Result struct {
	SQL       string
	Failed    bool
	Embedding []float32
}

// entry is the single record kept per request hash. All per-entry state
// lives here so insert, update and delete stay atomic.
type entry struct {
	key         string
	request     string
	sql         string
	failed      bool
	embedding   []float32
	genTime     time.Duration
	accessCount int
	seq         uint64
}

// Cache is the semantic SQL cache. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    []*entry // insertion order, for deterministic scans and tie-breaks
	maxSize  int
	embedder Embedder
	seq      uint64
	hits     atomic.Int64
	misses   atomic.Int64
}

// New creates a Cache holding at most maxSize entries.
func New(embedder Embedder, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		entries:  make(map[string]*entry),
		maxSize:  maxSize,
		embedder: embedder,
	}
}

// hashRequest derives the content-addressed key for a request.
func hashRequest(request string) string {
	sum := sha256.Sum256([]byte(request))
	return fmt.Sprintf("%x", sum)
}

// Get performs an exact-key lookup and increments the entry's access count
// on hit. found is true whenever an entry exists, including entries that
// recorded a failed generation.
func (c *Cache) Get(request string) (Result, bool) {
	key := hashRequest(request)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return Result{}, false
	}
	e.accessCount++
	c.hits.Add(1)
	return Result{SQL: e.sql, Failed: e.failed, Embedding: e.embedding}, true
}

// Set inserts or updates the entry for request. An empty sql records a
// failed generation; a recorded failure never overwrites a previously
// stored SQL. The embedding is computed on every content write, and an
// embedder error fails the whole operation.
func (c *Cache) Set(ctx context.Context, request, sql string, genTime time.Duration) error {
	key := hashRequest(request)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && sql == "" {
		// A later failure must not clobber an earlier success.
		e.accessCount++
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// External call, kept outside the lock.
	emb, err := c.embedder.Embed(ctx, request)
	if err != nil {
		return fmt.Errorf("cache set %q: %w", request, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.sql = sql
		e.failed = false
		e.genTime = genTime
		e.embedding = emb
		e.accessCount++
		return nil
	}

	c.seq++
	e := &entry{
		key:         key,
		request:     request,
		sql:         sql,
		failed:      sql == "",
		embedding:   emb,
		genTime:     genTime,
		accessCount: 1,
		seq:         c.seq,
	}
	c.entries[key] = e
	c.order = append(c.order, e)
	c.maintainSize()
	return nil
}

// FindClosest scans all entries and returns the one at minimum cosine
// distance from request. The scan runs in insertion order with a strict
// minimum update, so the earliest-inserted entry wins ties. On an empty
// cache the returned distance is +Inf.
func (c *Cache) FindClosest(ctx context.Context, request string) (string, string, float64, error) {
	target, err := c.embedder.Embed(ctx, request)
	if err != nil {
		return "", "", 0, fmt.Errorf("cache find closest: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		bestRequest string
		bestSQL     string
		minDistance = math.Inf(1)
	)
	for _, e := range c.order {
		d := 1.0 - cosineSimilarity(e.embedding, target)
		if d < minDistance {
			minDistance = d
			bestRequest = e.request
			bestSQL = e.sql
		}
	}
	return bestRequest, bestSQL, minDistance, nil
}

// FindClosestWithinThreshold returns the SQL of the closest entry if its
// distance is at most threshold. A miss is silent: ok is false and there
// is no error. Entries that recorded a failed generation never produce
// a hit, since they have no SQL to reuse.
func (c *Cache) FindClosestWithinThreshold(ctx context.Context, request string, threshold float64) (string, bool, error) {
	_, sql, distance, err := c.FindClosest(ctx, request)
	if err != nil {
		return "", false, err
	}
	if distance <= threshold && sql != "" {
		return sql, true, nil
	}
	return "", false, nil
}

// Len returns the number of entries currently in the cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache metrics plus a per-entry dump, in insertion order.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	detail := make([]models.CacheEntryStats, 0, len(c.order))
	for _, e := range c.order {
		detail = append(detail, models.CacheEntryStats{
			UserRequest:    e.request,
			SQL:            e.sql,
			AccessCount:    e.accessCount,
			GenerationTime: e.genTime,
		})
	}
	return models.CacheStats{
		Entries: int64(len(c.entries)),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Detail:  detail,
	}
}

// FailedRequests returns the request texts whose SQL generation failed.
func (c *Cache) FailedRequests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var failed []string
	for _, e := range c.order {
		if e.failed {
			failed = append(failed, e.request)
		}
	}
	return failed
}

// maintainSize evicts the lowest-access-count entries until the cache is
// back at maxSize. Ties are broken by insertion order, oldest first.
// Caller must hold c.mu.
func (c *Cache) maintainSize() {
	excess := len(c.entries) - c.maxSize
	if excess <= 0 {
		return
	}

	victims := make([]*entry, len(c.order))
	copy(victims, c.order)
	sort.SliceStable(victims, func(i, j int) bool {
		if victims[i].accessCount != victims[j].accessCount {
			return victims[i].accessCount < victims[j].accessCount
		}
		return victims[i].seq < victims[j].seq
	})

	evicted := make(map[string]bool, excess)
	for _, e := range victims[:excess] {
		delete(c.entries, e.key)
		evicted[e.key] = true
	}

	kept := c.order[:0]
	for _, e := range c.order {
		if !evicted[e.key] {
			kept = append(kept, e)
		}
	}
	c.order = kept
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Mismatched or zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
