package validator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	domainerr "github.com/expensetrack/expensetrack/domain/error"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object from the request body into dst.
// The returned error is always an AppError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return domainerr.ErrInvalidRequest("Content-Type must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domainerr.ErrInvalidRequest("request body is empty")
		case errors.As(err, &maxErr):
			return domainerr.ErrInvalidRequest("request body too large")
		default:
			return domainerr.ErrInvalidRequest("malformed JSON body")
		}
	}
	if dec.More() {
		return domainerr.ErrInvalidRequest("request body must contain a single JSON object")
	}
	return nil
}

// Required reports field as missing when value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domainerr.ErrMissingField(field)
	}
	return nil
}
