package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kz-league/cs2kz-api/internal/problem"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// RespondError writes an RFC 9457 problem document. Kept as a thin wrapper
// around problem.WriteType so handlers in this package don't need to import
// problem directly for the common case.
func RespondError(w http.ResponseWriter, t problem.Type, detail string) {
	problem.WriteType(w, nil, t, detail)
}

// RespondValidationError writes a 400 bad-request problem document with
// field-level validation errors as an extension member.
func RespondValidationError(w http.ResponseWriter, errs []ValidationError) {
	problem.Write(w, nil, problem.New(problem.BadRequest, "one or more fields failed validation").
		WithExtensions(map[string]any{"errors": errs}))
}
