package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false) // keep Korean text and URLs readable
	if err := enc.Encode(v); err != nil {
		slog.Error("write json", slog.Any("error", err))
	}
}

func WriteError(w http.ResponseWriter, status int, kind string, err error) {
	resp := ErrorResponse{Error: kind}
	if err != nil {
		resp.Message = err.Error()
	}
	WriteJSON(w, status, resp)
}

// DecodeJSON decodes the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
