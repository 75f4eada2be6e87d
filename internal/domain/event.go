package domain

import "time"

// Event types broadcast to dashboard clients.
const (
	EventAlertCreated    = "alert_created"
	EventAlertUpdated    = "alert_updated"
	EventAlertDeleted    = "alert_deleted"
	EventDeliverySuccess = "delivery_success"
	EventDeliveryFailed  = "delivery_failed"
)

type AlertEvent struct {
	Type        string    `json:"type"`
	AlertID     string    `json:"alert_id"`
	AlertName   string    `json:"alert_name"`
	Destination string    `json:"destination,omitempty"`
	StatusCode  *int      `json:"status_code,omitempty"`
	ResponseMs  int64     `json:"response_ms,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
