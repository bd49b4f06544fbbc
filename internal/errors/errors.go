package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation = "E100"
	CodeStorage    = "E200"
	CodeDelivery   = "E300"
	CodeRateLimit  = "E500"
)

// GenericUserMessage is shown when a failure carries no user-facing text.
const GenericUserMessage = "An error occurred while processing your request. Please try again later."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// NewValidationError reports rejected user input; userMessage is sent back verbatim.
func NewValidationError(userMessage string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     fmt.Sprintf("validation failed: %s", userMessage),
		UserMessage: userMessage,
		Severity:    SeverityLow,
	}
}

// NewStorageError wraps a failing backend call made during operation op.
func NewStorageError(op string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeStorage,
		Message:     fmt.Sprintf("storage error during %s: %s", op, underlyingMsg),
		UserMessage: GenericUserMessage,
		Severity:    SeverityHigh,
		cause:       cause,
	}
}

// NewDeliveryError wraps a failed outbound message to chatID.
func NewDeliveryError(chatID string, cause error) *AppError {
	return &AppError{
		Code:        CodeDelivery,
		Message:     fmt.Sprintf("delivery to chat %s failed", chatID),
		UserMessage: GenericUserMessage,
		Severity:    SeverityMedium,
		cause:       cause,
	}
}

func NewRateLimitError(chatID string) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("rate limit exceeded for chat %s", chatID),
		UserMessage: "Too many requests. Please slow down.",
		Severity:    SeverityLow,
	}
}
