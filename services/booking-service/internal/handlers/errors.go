package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/slotledger/libs/httpx"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

type validationBody struct {
	httpx.ErrorBody
	Fields []model.FieldError `json:"fields,omitempty"`
}

// writeServiceError maps a service error onto its HTTP status. Internal
// errors are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := model.Code(err)
	switch model.Classify(err) {
	case model.ClassValidation:
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			httpx.WriteJSON(w, http.StatusBadRequest, validationBody{
				ErrorBody: httpx.ErrorBody{Error: err.Error(), Code: code},
				Fields:    verr.Fields,
			})
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, code, err.Error())
	case model.ClassNotFound:
		httpx.WriteError(w, http.StatusNotFound, code, err.Error())
	case model.ClassConflict:
		httpx.WriteError(w, http.StatusConflict, code, err.Error())
	default:
		logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, code, "internal error")
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", msg)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	httpx.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}
