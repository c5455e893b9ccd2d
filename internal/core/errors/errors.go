// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Generation backend errors.
var (
	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrGeneratorUnavailable indicates the generation backend could not be reached.
	ErrGeneratorUnavailable = errors.New("generation backend unavailable")

	// ErrUnknownProvider indicates an unsupported LLM_PROVIDER value.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrUnexpectedStatus indicates a non-success HTTP status from a remote service.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Response and parsing errors.
var (
	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrNoJSON indicates no JSON object could be located in free-form text.
	ErrNoJSON = errors.New("no json object in response")
)

// Configuration errors.
var (
	// ErrMissingCredentials indicates credentials for an optional capability are not set.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrNotifierDisabled indicates notifications are switched off.
	ErrNotifierDisabled = errors.New("notifier disabled")

	// ErrUnknownSource indicates a source name that no adapter implements.
	ErrUnknownSource = errors.New("unknown source")
)

// File interchange errors.
var (
	// ErrNoInputFile indicates no interchange file matched the requested stage.
	ErrNoInputFile = errors.New("no input file found")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
