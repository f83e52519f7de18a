package models

import "time"

// CacheEntryStats describes one semantic cache entry for observability.
type CacheEntryStats struct {
	UserRequest    string        `json:"user_request"`
	SQL            string        `json:"sql"`
	AccessCount    int           `json:"access_count"`
	GenerationTime time.Duration `json:"generation_time"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64             `json:"entries"`
	Hits    int64             `json:"hits"`
	Misses  int64             `json:"misses"`
	Detail  []CacheEntryStats `json:"detail,omitempty"`
}
