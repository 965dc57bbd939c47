package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeOK                 ErrorCode = "OK"
	ErrCodeUnknown            ErrorCode = "UNKNOWN"
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Scoring and knowledge error codes.
const (
	ErrCodeProfileNotFound      ErrorCode = "NRI_001"
	ErrCodeInvalidConfiguration ErrorCode = "NRI_002"
	ErrCodeSourceLoad           ErrorCode = "NRI_003"
	ErrCodeInvalidMeasurement   ErrorCode = "NRI_004"
	ErrCodeRegionNotFound       ErrorCode = "NRI_005"
)

// Messaging error codes.
const (
	ErrCodePublishFailed   ErrorCode = "MSG_001"
	ErrCodePublisherClosed ErrorCode = "MSG_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeOK:                 http.StatusOK,
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeProfileNotFound:      http.StatusNotFound,
	ErrCodeInvalidConfiguration: http.StatusUnprocessableEntity,
	ErrCodeSourceLoad:           http.StatusInternalServerError,
	ErrCodeInvalidMeasurement:   http.StatusBadRequest,
	ErrCodeRegionNotFound:       http.StatusNotFound,

	ErrCodePublishFailed:   http.StatusBadGateway,
	ErrCodePublisherClosed: http.StatusServiceUnavailable,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "authentication required",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "rate limit exceeded",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeExternalService:    "external service error",

	ErrCodeProfileNotFound:      "behavior profile not found",
	ErrCodeInvalidConfiguration: "invalid knowledge configuration",
	ErrCodeSourceLoad:           "failed to load knowledge source",
	ErrCodeInvalidMeasurement:   "invalid behavior measurement",
	ErrCodeRegionNotFound:       "brain region not found",

	ErrCodePublishFailed:   "event publish failed",
	ErrCodePublisherClosed: "event publisher closed",
}

// HTTPStatusOf returns the HTTP status for code, defaulting to 500.
func HTTPStatusOf(code ErrorCode) int {
	if s, ok := ErrorCodeHTTPStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// DefaultMessage returns the default human-readable message for code.
func DefaultMessage(code ErrorCode) string {
	if m, ok := ErrorCodeMessage[code]; ok {
		return m
	}
	return "unknown error"
}
