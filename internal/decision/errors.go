package decision

import "fmt"

// Stable error codes surfaced to callers of the pipeline
const (
	ErrCodeNoOptions          = "NO_OPTIONS"
	ErrCodeNoValidOptions     = "NO_VALID_OPTIONS"
	ErrCodeRuleExists         = "RULE_EXISTS"
	ErrCodeUnknownRule        = "UNKNOWN_RULE"
	ErrCodeNotFound           = "DECISION_NOT_FOUND"
	ErrCodeValidationFailed   = "DECISION_VALIDATION_FAILED"
	ErrCodeMaking             = "DECISION_MAKING_ERROR"
	ErrCodeExecution          = "DECISION_EXECUTION_ERROR"
	ErrCodeFeedback           = "FEEDBACK_PROCESSING_ERROR"
	ErrCodeHistory            = "DECISION_HISTORY_ERROR"
	ErrCodeRetrieval          = "DECISION_RETRIEVAL_ERROR"
	ErrCodeOfflineBufferFull  = "OFFLINE_BUFFER_FULL"
	ErrCodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	ErrCodeAdapterUnavailable = "ADAPTER_UNAVAILABLE"
	ErrCodeLLMUnavailable     = "LLM_UNAVAILABLE"
	ErrCodeCostCeiling        = "COST_CEILING_EXCEEDED"
)

// Error is a typed pipeline failure carrying a stable code and structured
// details for callers that need to branch on the failure class.
type Error struct {
	Code    string                 `json:"error_code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a typed decision error
func NewError(code, message string, details map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Errorf creates a typed decision error with a formatted message
func Errorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code from an error, or "" when it is not a
// decision error.
func CodeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
