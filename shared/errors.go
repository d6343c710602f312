package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory classifies failures for logging and retry decisions.
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryParsing       ErrorCategory = "parsing"
	ErrorCategoryNotification  ErrorCategory = "notification"
)

// ServiceError is a standardized error with component context. Save-path
// callers log it and degrade to a boolean result; only configuration
// errors at startup terminate the process.
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Message     string        `json:"message"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Operation, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error.
func NewServiceError(category ErrorCategory, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// LogError logs the error with structured fields.
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category": e.Category,
		"service_name":   e.ServiceName,
		"operation":      e.Operation,
		"retryable":      e.Retryable,
		"cause":          e.Cause,
	}).Error(e.Message)
}

// WrapError wraps an existing error with service error context.
func WrapError(err error, category ErrorCategory, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}
	if serviceErr, ok := err.(*ServiceError); ok {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}
	return NewServiceError(category, err.Error(), serviceName, operation, retryable, err)
}

// IsRetryableError reports whether an error is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if serviceErr, ok := err.(*ServiceError); ok {
		return serviceErr.Retryable
	}

	errorMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout", "connection refused", "connection reset",
		"temporary failure", "service unavailable", "too many requests",
		"network", "dns", "socket",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errorMsg, pattern) {
			return true
		}
	}
	return false
}
