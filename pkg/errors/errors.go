package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SNTL1001"
	ErrCodeConnectionTimeout    ErrorCode = "SNTL1002"
	ErrCodeAuthenticationFailed ErrorCode = "SNTL1003"
	ErrCodeNetworkUnavailable   ErrorCode = "SNTL1004"
	ErrCodeSessionToken         ErrorCode = "SNTL1005"
	ErrCodeInitialization       ErrorCode = "SNTL1006"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound   ErrorCode = "SNTL2001"
	ErrCodeConfigInvalid    ErrorCode = "SNTL2002"
	ErrCodeConfigMissing    ErrorCode = "SNTL2003"
	ErrCodeConfigPermission ErrorCode = "SNTL2004"
	ErrCodeProfileNotFound  ErrorCode = "SNTL2005"

	// Catalog errors (3xxx)
	ErrCodeDatabaseNotFound ErrorCode = "SNTL3001"
	ErrCodeSchemaNotFound   ErrorCode = "SNTL3002"
	ErrCodeObjectNotFound   ErrorCode = "SNTL3003"
	ErrCodeCatalogAccess    ErrorCode = "SNTL3004"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "SNTL4001"
	ErrCodeSQLPermission     ErrorCode = "SNTL4002"
	ErrCodeSQLTimeout        ErrorCode = "SNTL4003"
	ErrCodeSQLTransaction    ErrorCode = "SNTL4004"
	ErrCodeSQLObjectNotFound ErrorCode = "SNTL4005"
	ErrCodeSQLExecution      ErrorCode = "SNTL4006"
	ErrCodeNoResults         ErrorCode = "SNTL4007"
	ErrCodeDuplicateEntry    ErrorCode = "SNTL4008"
	ErrCodeCortexComplete    ErrorCode = "SNTL4009"
	ErrCodeUnknown           ErrorCode = "SNTL4999"

	// File system errors (5xxx)
	ErrCodeFileNotFound   ErrorCode = "SNTL5001"
	ErrCodeFilePermission ErrorCode = "SNTL5002"
	ErrCodeFileCorrupted  ErrorCode = "SNTL5003"
	ErrCodeFileOperation  ErrorCode = "SNTL5004"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "SNTL6001"
	ErrCodeInvalidInput     ErrorCode = "SNTL6002"
	ErrCodeRequiredField    ErrorCode = "SNTL6003"
	ErrCodeImageFormat      ErrorCode = "SNTL6004"

	// Security errors (7xxx)
	ErrCodeSecurityViolation  ErrorCode = "SNTL7001"
	ErrCodeEncryptionFailed   ErrorCode = "SNTL7002"
	ErrCodeCredentialsExpired ErrorCode = "SNTL7003"
	ErrCodeCredentialMissing  ErrorCode = "SNTL7004"

	// History/audit errors (8xxx)
	ErrCodeHistoryWriteFailed ErrorCode = "SNTL8001"
	ErrCodeNotFound           ErrorCode = "SNTL8002"
	ErrCodeInvalidState       ErrorCode = "SNTL8003"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "SNTL9001"
	ErrCodeTimeout            ErrorCode = "SNTL9002"
	ErrCodeResourceExhausted  ErrorCode = "SNTL9003"
	ErrCodeServiceUnavailable ErrorCode = "SNTL9004"
	ErrCodeResultParsing      ErrorCode = "SNTL9005"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit some properties
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the Snowflake endpoint is accessible",
			"Confirm the account identifier in your connection profile",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'snowtools init' to reconfigure",
			"Refer to the configuration documentation",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	lower := strings.ToLower(message)
	if cause != nil {
		lower += " " + strings.ToLower(cause.Error())
	}
	if strings.Contains(lower, "permission") || strings.Contains(lower, "access denied") || strings.Contains(lower, "not authorized") {
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in Snowflake",
			"Verify the role has required privileges",
			"Contact your Snowflake administrator",
		)
	} else if strings.Contains(lower, "timeout") {
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Retry the operation",
			"Increase the query timeout setting",
			"Check Snowflake warehouse size",
		)
	} else if strings.Contains(lower, "does not exist") {
		err.Code = ErrCodeSQLObjectNotFound
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// CortexError creates an error for a failed LLM completion call
func CortexError(model string, cause error) *AppError {
	return Wrap(cause, ErrCodeCortexComplete, fmt.Sprintf("Cortex completion with model '%s' failed", model)).
		WithContext("model", model).
		WithSuggestions(
			"Verify the model is available in your Snowflake region",
			"Check that the role has the SNOWFLAKE.CORTEX_USER database role",
			"Try a different model",
		)
}

// DuplicateError creates an error for an insert that already exists
func DuplicateError(entity string, value string) *AppError {
	return New(ErrCodeDuplicateEntry, fmt.Sprintf("%s '%s' already exists", entity, value)).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
