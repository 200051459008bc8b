package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	// Provider errors.
	ErrAuthFailed          = fmt.Errorf("authentication failed")
	ErrRateLimited         = fmt.Errorf("rate limit exceeded")
	ErrModelNotAvailable   = fmt.Errorf("model not available")
	ErrInvalidRequest      = fmt.Errorf("invalid request")
	ErrContentFiltered     = fmt.Errorf("content blocked by provider safety filter")
	ErrProviderUnavailable = fmt.Errorf("provider temporarily unavailable")
	ErrProviderNotFound    = fmt.Errorf("llm provider not found")
	ErrEmptyResponse       = fmt.Errorf("provider returned empty response")

	// Tool errors.
	ErrToolNotFound       = fmt.Errorf("tool not found")
	ErrToolFailure        = fmt.Errorf("tool execution failed")
	ErrMissingSideChannel = fmt.Errorf("tool requires a delivery channel")
	ErrDuplicateToolCall  = fmt.Errorf("tool invocation already executed")
	ErrToolDepthExceeded  = fmt.Errorf("tool call depth exceeded")
	ErrSSRFBlocked        = fmt.Errorf("request blocked by SSRF protection")

	// Rate limiter errors. ErrLimiterTimeout is distinct from ErrRateLimited:
	// the former means we gave up waiting locally, the latter is a provider 429.
	ErrLimiterTimeout = fmt.Errorf("timed out waiting for rate limiter")

	// Configuration errors.
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Execute")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Code returns the machine-parseable error code for this error.
func (e *DomainError) Code() ErrorCode { return ErrorCodeOf(e.Err) }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeAuthFailed          ErrorCode = "AUTH_FAILED"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeModelNotAvailable   ErrorCode = "MODEL_NOT_AVAILABLE"
	CodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	CodeContentFiltered     ErrorCode = "CONTENT_FILTERED"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"
	CodeEmptyResponse       ErrorCode = "EMPTY_RESPONSE"
	CodeToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	CodeToolFailure         ErrorCode = "TOOL_FAILURE"
	CodeMissingSideChannel  ErrorCode = "MISSING_SIDE_CHANNEL"
	CodeDuplicateToolCall   ErrorCode = "DUPLICATE_TOOL_CALL"
	CodeToolDepthExceeded   ErrorCode = "TOOL_DEPTH_EXCEEDED"
	CodeSSRFBlocked         ErrorCode = "SSRF_BLOCKED"
	CodeLimiterTimeout      ErrorCode = "LIMITER_TIMEOUT"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrAuthFailed:          CodeAuthFailed,
	ErrRateLimited:         CodeRateLimited,
	ErrModelNotAvailable:   CodeModelNotAvailable,
	ErrInvalidRequest:      CodeInvalidRequest,
	ErrContentFiltered:     CodeContentFiltered,
	ErrProviderUnavailable: CodeProviderUnavailable,
	ErrProviderNotFound:    CodeProviderNotFound,
	ErrEmptyResponse:       CodeEmptyResponse,
	ErrToolNotFound:        CodeToolNotFound,
	ErrToolFailure:         CodeToolFailure,
	ErrMissingSideChannel:  CodeMissingSideChannel,
	ErrDuplicateToolCall:   CodeDuplicateToolCall,
	ErrToolDepthExceeded:   CodeToolDepthExceeded,
	ErrSSRFBlocked:         CodeSSRFBlocked,
	ErrLimiterTimeout:      CodeLimiterTimeout,
	ErrConfigLoad:          CodeConfigLoad,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	// Walk the error chain with errors.Is.
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
