package handlers

import (
	"errors"
	"net/http"

	"github.com/aristath/stockledger/internal/domain"
)

// StatusFor maps an engine error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientShares):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
