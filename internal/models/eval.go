package models

import (
	"time"

	"github.com/google/uuid"
)

type EvalJob struct {
	ID           uuid.UUID  `json:"id"`
	SessionID    uuid.UUID  `json:"session_id"`
	Status       string     `json:"status"` // "pending" | "processing" | "completed" | "failed"
	Total        int        `json:"total"`
	Completed    int        `json:"completed"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type EvalResult struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	Seq          int       `json:"seq"`
	Query        string    `json:"query"`
	Response     *string   `json:"response"`
	ErrorMessage *string   `json:"error_message"`
	LatencyMS    *int      `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateEvalRequest struct {
	Queries []string `json:"queries"`
}

type EvalJobResponse struct {
	Job     EvalJob       `json:"job"`
	Results []*EvalResult `json:"results,omitempty"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ProgressUpdate struct {
	JobID     uuid.UUID `json:"job_id"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
}

type CompletedEvent struct {
	JobID     uuid.UUID `json:"job_id"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
