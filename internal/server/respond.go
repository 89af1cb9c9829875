package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/parley-chat/parley/internal/store"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: writing response: %v", err)
	}
}

func fail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}

// internalError logs the real failure and answers with a generic 500 so
// store details never leak to the caller.
func internalError(w http.ResponseWriter, context string, err error) {
	log.Printf("server: %s: %v", context, err)
	fail(w, http.StatusInternalServerError, "Internal server error")
}

// storeError translates store sentinel errors into their HTTP codes, with
// caller-supplied messages for the not-found and conflict cases.
func storeError(w http.ResponseWriter, err error, context, notFound, conflict string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrConflict):
		fail(w, http.StatusConflict, conflict)
	default:
		internalError(w, context, err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
