package models

import "time"

// SystemMetrics is a point-in-time summary of the process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheInvalidations       uint64    `json:"cache_invalidations"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	SignUps                  uint64    `json:"sign_ups"`
	InvitesConsumed          uint64    `json:"invites_consumed"`
	InviteEmailsSent         uint64    `json:"invite_emails_sent"`
	RealtimeClients          int       `json:"realtime_clients"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
