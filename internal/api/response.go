package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/partpilot/partpilot/internal/models"
)

// fallbackErrorBody is marshaled once at startup so the handlers can always
// write a well-formed error envelope, even when encoding the real payload
// fails mid-request.
var fallbackErrorBody = func() []byte {
	body, err := json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic("api: marshaling fallback error body: " + err.Error())
	}
	return body
}()

// writeJSONResponse marshals the payload before touching the response
// writer, so an encoding failure can still downgrade the status code instead
// of truncating a half-written 200.
func writeJSONResponse(w http.ResponseWriter, statusCode int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal payload", "error", err)
		body = fallbackErrorBody
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write response", "error", err)
	}
}
