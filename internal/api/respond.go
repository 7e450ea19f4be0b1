package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errResponse is the body of every non-2xx reply.
type errResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v without HTML escaping so catalogue text and links
// come back exactly as they sit in the catalogue file.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResponse{Error: msg})
}
