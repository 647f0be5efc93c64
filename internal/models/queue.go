package models

import "time"

// QueueItem is one independent unit of background work scheduled by the
// task queue. Items are dispatched highest priority first, ties broken by
// earliest creation time.
type QueueItem struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Priority   Priority   `json:"priority"`
	Status     ItemStatus `json:"status"`
	Payload    string     `json:"payload,omitempty"`
	RetryCount int        `json:"retry_count"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
