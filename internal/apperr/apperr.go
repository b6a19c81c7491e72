package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// Sentinels for the failure modes the HTTP layer distinguishes. Wrap them
// with fmt.Errorf("%w: ...") to attach detail; Write maps them back to a
// status code via errors.Is.
var (
	// ErrNotFound: the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotFoundOrUnauthorized deliberately conflates "no such attempt"
	// with "not your attempt" so attempt ids cannot be enumerated.
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")

	// ErrLocked: mutation against a published exam.
	ErrLocked = errors.New("exam is published and locked")

	// ErrConflict: duplicate unique key (email, subject name).
	ErrConflict = errors.New("already exists")

	// ErrValidation: missing or malformed input.
	ErrValidation = errors.New("invalid input")

	// ErrAlreadySubmitted: re-submission of a terminal attempt.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotFoundOrUnauthorized):
		return http.StatusNotFound
	case errors.Is(err, ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Validationf builds an ErrValidation with detail.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type payload struct {
	Message string `json:"message"`
}

// Write renders err as the {message} JSON body. Unknown errors are logged
// and reported as a generic 500 so internal detail never crosses the
// boundary.
func Write(w http.ResponseWriter, err error) {
	status := Status(err)
	body := payload{Message: err.Error()}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		body = payload{Message: "internal server error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}
