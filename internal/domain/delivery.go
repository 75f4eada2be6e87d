package domain

import (
	"time"
)

// Delivery attempt statuses.
const (
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailed  = "failed"
)

type DeliveryAttempt struct {
	ID             string    `json:"id"`
	AlertID        string    `json:"alert_id"`
	JobID          string    `json:"job_id"`
	Destination    string    `json:"destination"`
	Status         string    `json:"status"`
	HTTPStatusCode *int      `json:"http_status_code,omitempty"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
