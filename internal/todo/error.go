package todo

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEntityNotFound is returned when no entity has the requested ID.
var ErrEntityNotFound = errors.New("no such entity")

// ItemNotFoundError is returned by [Entity.UpdateItem] and
// [Entity.DeleteItems] when the item with the specified UID is not part of
// the entity's current snapshot.
type ItemNotFoundError struct {
	// UID is the UID of the item that was not found.
	UID string
}

// NewItemNotFoundError creates an [ItemNotFoundError] for the item with the
// specified UID.
func NewItemNotFoundError(uid string) *ItemNotFoundError {
	return &ItemNotFoundError{UID: uid}
}

// IsItemNotFoundError checks if the provided error is an [ItemNotFoundError].
func IsItemNotFoundError(err error) bool {
	var e *ItemNotFoundError
	return err != nil && errors.As(err, &e)
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("unable to find to-do item: %s", e.UID)
}

// StatusError is returned when the AnyList server rejects an entity action.
type StatusError struct {
	// Op is the rejected operation.
	Op string
	// Code is the HTTP status code returned by the AnyList server.
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot %s: received error code %d", e.Op, e.Code)
}

type restError struct {
	cause   error
	status  int
	Message string `json:"message"`
}

func (e *restError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause.Error())
	}
	return e.Message
}

func (e *restError) Unwrap() error {
	return e.cause
}

func newBadRequestError(msg string, cause error) *restError {
	return &restError{cause, http.StatusBadRequest, msg}
}

func newNotFoundError(msg string, cause error) *restError {
	return &restError{cause, http.StatusNotFound, msg}
}

func newInternalServerError(msg string, cause error) *restError {
	return &restError{cause, http.StatusInternalServerError, msg}
}

// newActionError maps the error of an entity action to a REST error.
func newActionError(msg string, cause error) *restError {
	var statusErr *StatusError
	switch {
	case IsItemNotFoundError(cause):
		return newNotFoundError(msg, cause)
	case errors.As(cause, &statusErr):
		return &restError{cause, http.StatusBadGateway, msg}
	default:
		return newInternalServerError(msg, cause)
	}
}
