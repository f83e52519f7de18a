package models

import "time"

// AuditEntry records one handled chat request.
type AuditEntry struct {
	ID             int64     `json:"id,omitempty"`
	ConvID         string    `json:"conv_id"`
	RequestText    string    `json:"request_text"`
	Classification string    `json:"classification"`
	CacheHit       bool      `json:"cache_hit"`
	StatusCode     int       `json:"status_code"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}
