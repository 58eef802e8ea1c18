package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const jsonContentType = "application/json; charset=utf-8"

// Error tags returned in {"error": {"tag", "message"}} bodies.
const (
	tagInvalidAuth    = "invalid-auth"
	tagInvalidRequest = "invalid-request"
	tagItemNotFound   = "item-not-found"
	tagUUIDConflict   = "uuid-conflict"
	tagEmailTaken     = "email-taken"
	tagBackupDisabled = "backup-disabled"
	tagServerError    = "server-error"
)

const (
	msgInvalidAuth  = "Invalid login credentials."
	msgItemNotFound = "Item not found."
	msgServerError  = "An unexpected error occurred."
)

type errorDetail struct {
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, tag, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Message: message, Tag: tag}})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, tagInvalidAuth, msgInvalidAuth)
}

// writeServerError logs err and hides it from the client.
func writeServerError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	requestLogger(r, logger).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, tagServerError, msgServerError)
}

// noContent writes a bare 204 without a Content-Type header.
func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
