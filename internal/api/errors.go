package api

import (
	"errors"
	"net/http"

	"github.com/punchamoorthee/ledgerops/internal/domain"
)

var errForbidden = errors.New("account belongs to another owner")

// statusFor maps a service error onto the HTTP status and the message shown to the
// client. Anything unrecognised is a 500 and its text is not exposed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "Amount must be positive"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "Insufficient funds"
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusUnprocessableEntity, "Account is not active"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict, "Concurrent update, retry the request"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "Forbidden"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}
