// Package handlers implements the admin API endpoints. Every failure is
// written as an ErrorResponse carrying one of the codes below; clients branch
// on the code, not on the message.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	ErrCodeInvalidSetting = "invalid_setting"
	ErrCodeInvalidDuration = "invalid_duration"
)
