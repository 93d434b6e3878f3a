package contract

import "fmt"

// Stable validation error codes surfaced on the wire.
const (
	CodeInvalidString      = "INVALID_STRING"
	CodeEmptyString        = "EMPTY_STRING"
	CodeInvalidWeight      = "INVALID_WEIGHT"
	CodeWeightOutOfRange   = "WEIGHT_OUT_OF_RANGE"
	CodeInvalidReference   = "INVALID_REFERENCE"
	CodeInvalidSource      = "INVALID_SOURCE"
	CodeInvalidFeatureType = "INVALID_FEATURE_TYPE"
	CodeInvalidSources     = "INVALID_SOURCES"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeInvalidStatusValue = "INVALID_STATUS_VALUE"
)

// ValidationError reports the first contract violation encountered. Details
// carries the offending field, index, and received value where applicable.
type ValidationError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("contract: %s: %s", e.Code, e.Message)
}

func newValidationError(code, message string, details map[string]any) *ValidationError {
	return &ValidationError{Code: code, Message: message, Details: details}
}
