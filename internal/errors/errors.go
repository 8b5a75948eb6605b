package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Upstream rate limit hit (GitHub 403/429)
	ErrorTypeRateLimited ErrorType = iota
	// Repository does not exist or is private
	ErrorTypeNotFound
	// Any other failure reaching the repository
	ErrorTypeAccess
	// Model output was not the JSON shape we asked for
	ErrorTypeParse
	// No commit touched any of the feature's files
	ErrorTypeNoRelevantCommits
	// Input could not be resolved to owner/repo
	ErrorTypeInvalidReference
	// Request body missing or malformed
	ErrorTypeInvalidRequest
	// GitHub or LLM call failed outside the repo-info probe
	ErrorTypeUpstream
	// Missing or invalid configuration
	ErrorTypeConfig
	// Unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - result degrades to empty, request still succeeds
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - halts the pipeline
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// Kind returns the wire name of the error type
func (e *Error) Kind() string {
	return typeString(e.Type)
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeRateLimited:
		return "AccessRateLimited"
	case ErrorTypeNotFound:
		return "RepositoryNotFound"
	case ErrorTypeAccess:
		return "RepositoryAccessError"
	case ErrorTypeParse:
		return "ResponseParseFailure"
	case ErrorTypeNoRelevantCommits:
		return "NoRelevantCommits"
	case ErrorTypeInvalidReference:
		return "InvalidRepositoryReference"
	case ErrorTypeInvalidRequest:
		return "InvalidRequest"
	case ErrorTypeUpstream:
		return "UpstreamFailure"
	case ErrorTypeConfig:
		return "Config"
	case ErrorTypeInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Convenience constructors

// RateLimitedError wraps an upstream rate-limit rejection
func RateLimitedError(err error, message string) *Error {
	return Wrap(err, ErrorTypeRateLimited, SeverityCritical, message)
}

// NotFoundError wraps an upstream 404 for the repository itself
func NotFoundError(err error, message string) *Error {
	return Wrap(err, ErrorTypeNotFound, SeverityCritical, message)
}

// AccessError wraps any other repository access failure
func AccessError(err error, message string) *Error {
	return Wrap(err, ErrorTypeAccess, SeverityCritical, message)
}

// ParseError wraps a model-output decoding failure. Parse failures are soft.
func ParseError(err error, message string) *Error {
	return Wrap(err, ErrorTypeParse, SeverityLow, message)
}

// NoRelevantCommitsError reports that no commit matched the feature files
func NoRelevantCommitsError(message string) *Error {
	return New(ErrorTypeNoRelevantCommits, SeverityCritical, message)
}

// InvalidReferenceError reports a repository reference that cannot be parsed
func InvalidReferenceError(message string) *Error {
	return New(ErrorTypeInvalidReference, SeverityHigh, message)
}

// InvalidRequestError wraps a request body that failed to bind or validate
func InvalidRequestError(err error, message string) *Error {
	if err == nil {
		return New(ErrorTypeInvalidRequest, SeverityHigh, message)
	}
	return Wrap(err, ErrorTypeInvalidRequest, SeverityHigh, message)
}

// UpstreamError wraps a GitHub or LLM failure
func UpstreamError(err error, message string) *Error {
	return Wrap(err, ErrorTypeUpstream, SeverityCritical, message)
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// As finds the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	if e, ok := As(err); ok {
		return e.IsFatal()
	}
	return err != nil
}

// GetType returns the type of an error
func GetType(err error) ErrorType {
	if e, ok := As(err); ok {
		return e.Type
	}
	return ErrorTypeInternal
}

// KindOf returns the wire name of an error's type
func KindOf(err error) string {
	return typeString(GetType(err))
}
