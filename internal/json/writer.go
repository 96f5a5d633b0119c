package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dgellow/yt-front/internal/log"
)

// maxRequestBody bounds JSON request bodies accepted by ReadRequest
const maxRequestBody = 64 << 10

// ErrorResponse is the JSON error payload returned by every endpoint.
// Retryable separates transient failures from ones that require a new login.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
	Details   string `json:"details,omitempty"`
}

// WriteResponse writes a JSON response with the given status code
func WriteResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		return err
	}
	return nil
}

// Write writes a JSON response with 200 OK status
func Write(w http.ResponseWriter, data any) error {
	return WriteResponse(w, http.StatusOK, data)
}

// WriteErrorResponse writes a fully populated error payload
func WriteErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	if err := WriteResponse(w, statusCode, resp); err != nil {
		// Fallback to plain text error if JSON encoding fails
		http.Error(w, resp.Error+": "+resp.Message, statusCode)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, kind string, message string) {
	WriteErrorResponse(w, statusCode, ErrorResponse{
		Error:     kind,
		Message:   message,
		Retryable: statusCode >= http.StatusInternalServerError,
	})
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_server_error", message)
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

// ReadRequest decodes a bounded JSON request body into v
func ReadRequest(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
