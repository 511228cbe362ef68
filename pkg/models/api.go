package models

import "encoding/json"

// Record API types
type RecordsResponse struct {
	Status    string          `json:"status"`
	Count     int             `json:"count"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

type RecordResponse struct {
	Status   string       `json:"status"`
	RecordID string       `json:"record_id"`
	Data     RecordFields `json:"data"`
}

type RecordMutationResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	RecordID string `json:"record_id"`
}

type CountResponse struct {
	Status    string `json:"status"`
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

type SearchResponse struct {
	Status   string     `json:"status"`
	Count    int        `json:"count"`
	Degraded bool       `json:"degraded"`
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
}

type ForwardResponse struct {
	Status           string `json:"status"`
	ExternalStatus   int    `json:"external_status"`
	ExternalResponse any    `json:"external_response"`
	RecordsSent      int    `json:"records_sent"`
}

// Account API types
type SignupRequest struct {
	SerialNumber  string `json:"serial_number"`
	ModelNumber   string `json:"model_number"`
	DeviceType    string `json:"device_type"`
	ContactNumber string `json:"contact_number"`
	Password      string `json:"password"`
}

type SignupResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Account *Account `json:"account"`
}

type LoginRequest struct {
	SerialNumber string `json:"serial_number"`
	Password     string `json:"password"`
}

type LoginResponse struct {
	Status    string   `json:"status"`
	Account   *Account `json:"account"`
	Token     string   `json:"token,omitempty"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

type LockoutStatusResponse struct {
	SerialNumber     string `json:"serial_number"`
	Locked           bool   `json:"locked"`
	RemainingSeconds int    `json:"remaining_seconds"`
	FailureCount     int    `json:"failure_count"`
}

// Error response
type ErrorResponse struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	Message      string `json:"message,omitempty"`
	Field        string `json:"field,omitempty"`
	AttemptsLeft *int   `json:"attempts_left,omitempty"`
	RetryAfter   int    `json:"retry_after_seconds,omitempty"`
}
