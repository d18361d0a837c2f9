package models

import "time"

// AuditEntry records one API interaction for the compliance trail.
type AuditEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	Topic      string    `json:"topic,omitempty"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}
