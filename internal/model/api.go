package model

import "time"

// APIResponse is the envelope for every successful HTTP response.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// ResponseMeta carries per-request metadata.
type ResponseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError is the envelope for every error response.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail describes what went wrong.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Stable error codes returned by the API.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooLarge         = "PAYLOAD_TOO_LARGE"
	ErrCodeIntegrityFailure = "INTEGRITY_FAILURE"
	ErrCodeUpstream         = "UPSTREAM_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
)
