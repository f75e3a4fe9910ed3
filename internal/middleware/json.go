package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"go-user-service/internal/model"
)

func writeJSONError(w http.ResponseWriter, status int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Code: code, Detail: detail})
}

func writeInternalError(w http.ResponseWriter) {
	writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
}

func isUnauthorized(err error) bool {
	return errors.Is(err, model.ErrUnauthorized)
}
