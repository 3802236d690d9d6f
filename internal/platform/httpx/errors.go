// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridianfin/meridian/internal/consol"
)

// RespondError maps consolidation errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var (
		conflict  *consol.ConflictError
		config    *consol.ConfigurationError
		imbalance *consol.TrialBalanceImbalanceError
		corrupt   *consol.DataCorruptionError
	)
	switch {
	case errors.Is(err, consol.ErrGroupNotFound), errors.Is(err, consol.ErrRunNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, consol.ErrGroupInactive):
		Problem(w, http.StatusUnprocessableEntity, "Group Inactive", err.Error())
	case errors.Is(err, consol.ErrRunNotCancellable):
		Problem(w, http.StatusConflict, "Run Not Cancellable", err.Error())
	case errors.As(err, &conflict):
		Problem(w, http.StatusConflict, "Run Conflict", conflict.Error())
	case errors.As(err, &config):
		Problem(w, http.StatusUnprocessableEntity, "Configuration Error", config.Error())
	case errors.As(err, &imbalance):
		Problem(w, http.StatusUnprocessableEntity, "Trial Balance Imbalance", imbalance.Error())
	case errors.As(err, &corrupt):
		Problem(w, http.StatusInternalServerError, "Data Corruption", corrupt.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
