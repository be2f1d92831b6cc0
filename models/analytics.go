package models

import "time"

// AnalyticsEvent is forwarded to the gateway's tracking endpoint.
type AnalyticsEvent struct {
	Type      string            `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
