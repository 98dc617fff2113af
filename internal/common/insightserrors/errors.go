// Package insightserrors contains generic errors that should be returned by code handling API requests.
// The HTTP server looks for the error types defined in this file and sets the response status accordingly.
//
// If multiple errors occur in some function (e.g., several configuration fields are invalid), that
// function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package insightserrors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "resource" or "project"
	Value   string // Resource name, e.g., "rooms"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "op_field"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", fmt.Sprint(err.Value), err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", fmt.Sprint(err.Value), err.Name, err.Message)
}

// ErrInvalidAggregation is returned when a query asks for an aggregation the query builder does not expose.
// This is a caller error: it is never retried and is raised before any I/O takes place.
type ErrInvalidAggregation struct {
	Name      string   // The requested aggregation, e.g. "median"
	Supported []string // Aggregations the builder does support
}

func (err *ErrInvalidAggregation) Error() string {
	if len(err.Supported) == 0 {
		return fmt.Sprintf("aggregation %q is not supported", err.Name)
	}
	return fmt.Sprintf("aggregation %q is not supported; expected one of %v", err.Name, err.Supported)
}

// ErrMissingRequiredFilter is returned by services that cannot run without some filter values,
// e.g. order metrics invoked without a date range.
type ErrMissingRequiredFilter struct {
	Service string   // The service that rejected the request
	Missing []string // Filter keys that were not supplied
}

func (err *ErrMissingRequiredFilter) Error() string {
	if err.Service == "" {
		return fmt.Sprintf("missing required filters %v", err.Missing)
	}
	return fmt.Sprintf("%s requires filters %v", err.Service, err.Missing)
}

// upstreamStatusError is implemented by errors carrying the status code an upstream service answered with.
type upstreamStatusError interface {
	UpstreamStatusCode() int
}

// HTTPStatusFromError maps error types to HTTP status codes.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	// Using {} scopes just to re-use the "e" variable name for each case.
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return http.StatusNotFound
		}
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	{
		var e *ErrInvalidAggregation
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	{
		var e *ErrMissingRequiredFilter
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	{
		var e upstreamStatusError
		if errors.As(err, &e) {
			return http.StatusBadGateway
		}
	}

	return http.StatusInternalServerError
}
