package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError reports bad caller input. Maps to 400.
type ValidationError struct {
	Msg     string
	Missing []string // required fields absent from the record, if any
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing required fields: %s", e.Msg, strings.Join(e.Missing, ", "))
	}
	return e.Msg
}

// AuthorizationError reports a caller lacking permission. Maps to 403.
type AuthorizationError struct{ Msg string }

func (e *AuthorizationError) Error() string { return e.Msg }

// NotFoundError reports a missing record. Maps to 404.
type NotFoundError struct{ Kind, ID string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

// NodeConfigurationError reports a node record missing address, port or api
// key; detected before any remote call. Maps to 500.
type NodeConfigurationError struct{ Msg string }

func (e *NodeConfigurationError) Error() string { return e.Msg }

// RemoteCallError wraps a transport failure or upstream 5xx from a node
// daemon. Status carries the upstream HTTP status, 0 for transport errors.
// Maps to 502, or 504 on timeout.
type RemoteCallError struct {
	Op      string
	Status  int
	Timeout bool
	Err     error
}

func (e *RemoteCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node call %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("node call %s failed: upstream status %d", e.Op, e.Status)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// StorageError wraps a failure from the key-value store. Maps to 500.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %q: %v", e.Key, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// HTTPStatus maps a taxonomy error to the response code the api layer sends.
func HTTPStatus(err error) int {
	var ve *ValidationError
	var ae *AuthorizationError
	var nfe *NotFoundError
	var nce *NodeConfigurationError
	var rce *RemoteCallError
	var se *StorageError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ae):
		return http.StatusForbidden
	case errors.As(err, &nfe):
		return http.StatusNotFound
	case errors.As(err, &nce):
		return http.StatusInternalServerError
	case errors.As(err, &rce):
		if rce.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &se):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
