package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled before or during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMalformedResponse is returned when a 200 response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response body")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents undecodable response bodies.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError is a classified failure of a single request attempt.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error class is worth another attempt.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// 4xx and malformed bodies fail the same way on every attempt
		return false
	}
}

// Classify returns the class of err and whether it is retryable.
// Errors that are not an *APIError are never retried.
func Classify(err error) (ErrorClass, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	return apiErr.ErrorClass, apiErr.ErrorClass.Retryable()
}

// classifyStatus maps a non-200 HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return ErrorClassClient
	}
	return ErrorClassServer
}
