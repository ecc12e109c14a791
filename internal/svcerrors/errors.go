// Package svcerrors provides the structured error taxonomy used across the
// quote, execution, risk and infrastructure layers.
package svcerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a distinct failure mode.
type Code string

const (
	// Quote errors
	CodeQuoteNotFound     Code = "QUOTE_NOT_FOUND"
	CodeQuoteExpired      Code = "QUOTE_EXPIRED"
	CodeInvalidState      Code = "QUOTE_INVALID_STATE"
	CodeSameChainFunding  Code = "QUOTE_SAME_CHAIN"
	CodeUnsupportedPair   Code = "QUOTE_UNSUPPORTED_CHAIN_PAIR"
	CodeInvalidCostModel  Code = "QUOTE_INVALID_COST_MODEL"
	CodeOraclePriceStale  Code = "QUOTE_ORACLE_PRICE_STALE"

	// Execution errors
	CodeDuplicateExecution   Code = "EXECUTION_DUPLICATE"
	CodeExecutorChainMismatch Code = "EXECUTION_CHAIN_MISMATCH"
	CodeInsufficientTreasury  Code = "EXECUTION_INSUFFICIENT_TREASURY"
	CodeExecutionFailed       Code = "EXECUTION_FAILED"

	// Risk errors
	CodeDailyLimitExceeded     Code = "RISK_DAILY_LIMIT_EXCEEDED"
	CodeCircuitBreakerTriggered Code = "RISK_CIRCUIT_BREAKER_OPEN"

	// Infrastructure errors
	CodeInternal        Code = "INTERNAL"
	CodeDatabaseError   Code = "DATABASE_ERROR"
	CodeBlockchainError Code = "BLOCKCHAIN_ERROR"
	CodeExternalAPI     Code = "EXTERNAL_API_ERROR"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
)

// ServiceError is a structured error carrying an HTTP mapping and diagnostic
// detail. Handlers unwrap to this type rather than leak raw errors to callers.
type ServiceError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a diagnostic key/value pair and returns the receiver.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code Code, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Quote errors

func QuoteNotFound(id string) *ServiceError {
	return New(CodeQuoteNotFound, "quote not found", http.StatusNotFound).WithDetails("quote_id", id)
}

func QuoteExpired(id string) *ServiceError {
	return New(CodeQuoteExpired, "quote has expired", http.StatusConflict).WithDetails("quote_id", id)
}

func InvalidState(id, expected, actual string) *ServiceError {
	return New(CodeInvalidState, "quote is not in the expected state", http.StatusConflict).
		WithDetails("quote_id", id).WithDetails("expected", expected).WithDetails("actual", actual)
}

func SameChainFunding(chain string) *ServiceError {
	return New(CodeSameChainFunding, "funding chain and execution chain must differ", http.StatusBadRequest).
		WithDetails("chain", chain)
}

func UnsupportedChainPair(funding, execution string) *ServiceError {
	return New(CodeUnsupportedPair, "chain pair is not on the allowlist", http.StatusBadRequest).
		WithDetails("funding_chain", funding).WithDetails("execution_chain", execution)
}

func InvalidCostModel(chain, model string) *ServiceError {
	return New(CodeInvalidCostModel, "unknown cost model for chain", http.StatusInternalServerError).
		WithDetails("chain", chain).WithDetails("model", model)
}

func OraclePriceStale(pair string, age string) *ServiceError {
	return New(CodeOraclePriceStale, "oracle price exceeds staleness threshold", http.StatusServiceUnavailable).
		WithDetails("pair", pair).WithDetails("age", age)
}

// Execution errors

func DuplicateExecution(quoteID string) *ServiceError {
	return New(CodeDuplicateExecution, "execution already exists for this quote", http.StatusConflict).
		WithDetails("quote_id", quoteID)
}

func ExecutorChainMismatch(expected, actual string) *ServiceError {
	return New(CodeExecutorChainMismatch, "executor chain does not match quote", http.StatusInternalServerError).
		WithDetails("expected", expected).WithDetails("actual", actual)
}

func InsufficientTreasury(chain, required, available string) *ServiceError {
	return New(CodeInsufficientTreasury, "treasury balance is insufficient", http.StatusServiceUnavailable).
		WithDetails("chain", chain).WithDetails("required", required).WithDetails("available", available)
}

func ExecutionFailed(chain string, err error) *ServiceError {
	return Wrap(CodeExecutionFailed, "execution failed", http.StatusBadGateway, err).WithDetails("chain", chain)
}

// Risk errors

func DailyLimitExceeded(chain, current, attempted, limit string) *ServiceError {
	return New(CodeDailyLimitExceeded, "daily spending limit exceeded", http.StatusTooManyRequests).
		WithDetails("chain", chain).WithDetails("current", current).
		WithDetails("attempted", attempted).WithDetails("limit", limit)
}

func CircuitBreakerTriggered(chain, reason string) *ServiceError {
	return New(CodeCircuitBreakerTriggered, "circuit breaker is open for chain", http.StatusServiceUnavailable).
		WithDetails("chain", chain).WithDetails("reason", reason)
}

// Infrastructure errors

func Internal(message string, err error) *ServiceError {
	return Wrap(CodeInternal, message, http.StatusInternalServerError, err)
}

func DatabaseError(operation string, err error) *ServiceError {
	return Wrap(CodeDatabaseError, "database operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

func BlockchainError(operation string, err error) *ServiceError {
	return Wrap(CodeBlockchainError, "blockchain operation failed", http.StatusServiceUnavailable, err).
		WithDetails("operation", operation)
}

func ExternalAPIError(service string, err error) *ServiceError {
	return Wrap(CodeExternalAPI, "external API call failed", http.StatusBadGateway, err).
		WithDetails("service", service)
}

func InvalidInput(field, reason string) *ServiceError {
	return New(CodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).WithDetails("reason", reason)
}

func Unauthorized(message string) *ServiceError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Is reports whether err is a *ServiceError.
func Is(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// As extracts a *ServiceError from err's chain, if present.
func As(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus returns the HTTP status for err, defaulting to 500.
func HTTPStatus(err error) int {
	if se := As(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
