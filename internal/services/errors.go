package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the orchestrator error taxonomy. Stage handlers wrap
// failures with exactly one marker so the workflow manager can classify them.
var (
	// ErrValidation marks bad request-level input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrMicroservice marks a transient external collaborator failure.
	// Retried through the backoff executor.
	ErrMicroservice = errors.New("microservice error")
	// ErrProcessing marks a stage-internal fatal condition, such as an
	// assembled duration outside tolerance. Fails the job.
	ErrProcessing = errors.New("processing error")
	// ErrResource marks disk or memory exhaustion. Fails the job.
	ErrResource = errors.New("resource error")
	// ErrRecovery marks missing prerequisites during orphan resume.
	ErrRecovery = errors.New("recovery error")
)

// ErrorDetail is the structured failure payload persisted on a job.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrMicroservice
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the taxonomy name for a wrapped error.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrMicroservice):
		return "microservice"
	case errors.Is(err, ErrProcessing):
		return "processing"
	case errors.Is(err, ErrResource):
		return "resource"
	case errors.Is(err, ErrRecovery):
		return "recovery"
	default:
		return "internal"
	}
}

// IsRetryable reports whether an error represents a transient external
// failure that the backoff executor should retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrMicroservice)
}

// Details converts an error into the structured payload persisted on a job.
func Details(err error) ErrorDetail {
	if err == nil {
		return ErrorDetail{}
	}
	detail := ErrorDetail{
		Kind:    Kind(err),
		Message: err.Error(),
	}
	if unwrapped := errors.Unwrap(err); unwrapped != nil && unwrapped.Error() != detail.Message {
		detail.Details = unwrapped.Error()
	}
	return detail
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
