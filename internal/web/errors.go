package web

import (
	"errors"
	"net/http"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/conflict"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/notice"
	"github.com/evcraddock/johap/internal/ownership"
	"github.com/evcraddock/johap/internal/parcel"
	"github.com/evcraddock/johap/internal/property"
	"github.com/evcraddock/johap/internal/union"
)

// errorStatus maps a domain error to an HTTP status. Unknown errors are 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, member.ErrNotFound),
		errors.Is(err, conflict.ErrNotFound),
		errors.Is(err, property.ErrNotFound),
		errors.Is(err, notice.ErrNotFound),
		errors.Is(err, union.ErrNotFound),
		errors.Is(err, auth.ErrTokenNotFound),
		errors.Is(err, auth.ErrKeyNotFound):
		return http.StatusNotFound

	case errors.Is(err, member.ErrAlreadyRegistered),
		errors.Is(err, member.ErrInvalidTransition),
		errors.Is(err, conflict.ErrNotPending),
		errors.Is(err, conflict.ErrNoUnit),
		errors.Is(err, conflict.ErrOpenConflicts),
		errors.Is(err, conflict.ErrConflictClosed),
		errors.Is(err, conflict.ErrStale),
		errors.Is(err, ownership.ErrAlreadyHolder),
		errors.Is(err, ownership.ErrNotActive),
		errors.Is(err, property.ErrAlreadyExists),
		errors.Is(err, union.ErrAlreadyExists):
		return http.StatusConflict

	case errors.Is(err, member.ErrIncompleteProfile),
		errors.Is(err, member.ErrReasonRequired),
		errors.Is(err, member.ErrInvalidRole),
		errors.Is(err, conflict.ErrReasonRequired),
		errors.Is(err, conflict.ErrUnknownAction),
		errors.Is(err, notice.ErrTitleRequired),
		errors.Is(err, notice.ErrBodyRequired),
		errors.Is(err, union.ErrInvalidSlug),
		errors.Is(err, auth.ErrTokenName),
		errors.Is(err, auth.ErrTokenMaxUses),
		errors.Is(err, parcel.ErrInvalidPNU):
		return http.StatusBadRequest

	case errors.Is(err, parcel.ErrNotFound):
		return http.StatusUnprocessableEntity

	case errors.Is(err, property.ErrLookupUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with its mapped status. Internal errors are
// logged and hidden from the client.
func writeDomainError(w http.ResponseWriter, msg string, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		internalError(w, msg, err)
		return
	}
	apiError(w, err.Error(), code)
}
