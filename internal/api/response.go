package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/salonsuite/tenant-management-service/internal/errs"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func respondError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		log.Error().Err(err).Msg("Unhandled internal error")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"code": string(errs.CodeInternal), "message": "internal error"})
		return
	}
	respondJSON(w, httpStatus(e.Code), map[string]string{"code": string(e.Code), "message": e.Message})
}

func httpStatus(code errs.Code) int {
	switch code {
	case errs.CodeInvalidCode, errs.CodeBadTransition:
		return http.StatusBadRequest
	case errs.CodeDuplicateCode:
		return http.StatusConflict
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeSuspended:
		return http.StatusForbidden
	case errs.CodeConnection:
		return http.StatusServiceUnavailable
	case errs.CodeTimeout:
		return http.StatusGatewayTimeout
	case errs.CodePartialSeed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
