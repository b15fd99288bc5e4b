package handler

import (
	"errors"
	"go-ledger-api/common"
	"go-ledger-api/model"
	"go-ledger-api/service"
	"net/http"
)

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w, r)
		}
	}
}

// mapServiceError translates ledger errors into HTTP errors. Anything that is
// not a known client error becomes a 500 carrying the original error for logs.
func mapServiceError(err error, fallback string) *common.AppError {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return common.NewAppError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrTransactionNotFound):
		return common.NewAppError(http.StatusNotFound, err.Error(), err)
	case errors.Is(err, model.ErrInsufficientBalance):
		return common.NewAppError(http.StatusUnprocessableEntity, err.Error(), err)
	default:
		return common.NewAppError(http.StatusInternalServerError, fallback, err)
	}
}
