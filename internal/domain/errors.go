package domain

import (
	"fmt"
	"net/http"
)

// ErrorType categorizes gateway errors. Each type maps to an HTTP status
// class; Code adds the machine-readable detail callers branch on.
type ErrorType string

const (
	// ErrorTypeAuth indicates a missing or invalid credential.
	ErrorTypeAuth ErrorType = "auth"

	// ErrorTypeNotFound indicates the caller has no resolvable tenant.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeInvalidRequest indicates a malformed request body.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypePolicy indicates an admission gate rejected the request.
	// These are expected, user-facing outcomes.
	ErrorTypePolicy ErrorType = "policy"

	// ErrorTypeConfig indicates an operator misconfiguration.
	ErrorTypeConfig ErrorType = "config"

	// ErrorTypeUpstream indicates both model attempts failed.
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeServer indicates an unexpected internal error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode is the stable machine-readable code surfaced to callers.
type ErrorCode string

const (
	CodeAIDisabled       ErrorCode = "AI_DISABLED"
	CodeModuleNotEnabled ErrorCode = "MODULE_NOT_ENABLED"
	CodeBudgetExceeded   ErrorCode = "BUDGET_EXCEEDED"
	CodeNoAPIKey         ErrorCode = "NO_API_KEY"
)

// BudgetInfo carries the usage/limit pair attached to budget rejections.
type BudgetInfo struct {
	UsedCents  int64 `json:"used"`
	LimitCents int64 `json:"limit"`
}

// GatewayError is the canonical error for every failure the gateway
// surfaces. Handlers translate it to the JSON error body and status code.
type GatewayError struct {
	Type    ErrorType   `json:"type"`
	Code    ErrorCode   `json:"code,omitempty"`
	Message string      `json:"error"`
	Budget  *BudgetInfo `json:"budget_info,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *GatewayError) Unwrap() error { return e.cause }

// WithCause attaches the underlying error.
func (e *GatewayError) WithCause(err error) *GatewayError {
	e.cause = err
	return e
}

// HTTPStatusCode maps the error to its response status.
func (e *GatewayError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypePolicy:
		if e.Code == CodeBudgetExceeded {
			return http.StatusTooManyRequests
		}
		return http.StatusForbidden
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeConfig, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewGatewayError creates an error with the given type and message.
func NewGatewayError(t ErrorType, message string) *GatewayError {
	return &GatewayError{Type: t, Message: message}
}

// Convenience constructors for the taxonomy in use.

// ErrAuth creates a credential failure (401).
func ErrAuth(message string) *GatewayError {
	return NewGatewayError(ErrorTypeAuth, message)
}

// ErrNoTenant creates a "caller has no resolvable tenant" failure (404).
func ErrNoTenant() *GatewayError {
	return NewGatewayError(ErrorTypeNotFound, "no tenant resolvable for caller")
}

// ErrInvalidRequest creates a malformed-request failure (400).
func ErrInvalidRequest(message string) *GatewayError {
	return NewGatewayError(ErrorTypeInvalidRequest, message)
}

// ErrAIDisabled creates the disabled-mode gate rejection (403).
func ErrAIDisabled() *GatewayError {
	e := NewGatewayError(ErrorTypePolicy, "AI features are disabled for this tenant")
	e.Code = CodeAIDisabled
	return e
}

// ErrModuleNotEnabled creates the module-gate rejection (403).
func ErrModuleNotEnabled(module string) *GatewayError {
	e := NewGatewayError(ErrorTypePolicy, fmt.Sprintf("AI is not enabled for module %q", module))
	e.Code = CodeModuleNotEnabled
	return e
}

// ErrBudgetExceeded creates the budget-gate rejection (429) carrying the
// used/limit pair.
func ErrBudgetExceeded(usedCents, limitCents int64) *GatewayError {
	e := NewGatewayError(ErrorTypePolicy, "monthly AI budget exhausted")
	e.Code = CodeBudgetExceeded
	e.Budget = &BudgetInfo{UsedCents: usedCents, LimitCents: limitCents}
	return e
}

// ErrNoAPIKey creates the missing-credential configuration error (500).
func ErrNoAPIKey() *GatewayError {
	e := NewGatewayError(ErrorTypeConfig, "no upstream API key configured for tenant or process")
	e.Code = CodeNoAPIKey
	return e
}

// ErrUpstream creates the both-attempts-failed error (502).
func ErrUpstream(message string) *GatewayError {
	return NewGatewayError(ErrorTypeUpstream, message)
}

// ErrServer creates an unexpected internal error (500).
func ErrServer(message string) *GatewayError {
	return NewGatewayError(ErrorTypeServer, message)
}
