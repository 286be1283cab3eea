package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Machine-readable error kinds surfaced to API clients
const (
	KindDecodingFailed     = "decoding_failed"
	KindServiceError       = "service_error"
	KindUnauthorized       = "unauthorized"
	KindNotFound           = "not_found"
	KindInvalidRecord      = "invalid_record"
	KindInvalidState       = "invalid_state"
	KindCodeExchangeFailed = "code_exchange_failed"
	KindRefreshFailed      = "refresh_failed"
	KindTokenExpired       = "token_expired"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

// Render an error with a machine-readable kind
func Error(w http.ResponseWriter, kind string, message string, code int) {
	jsonWithStatus(w, ErrorResponse{Error: kind, Message: message}, code)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{Error: KindDecodingFailed}

	// Try to provide more specific error message based on error type
	switch err := err.(type) {
	case *json.UnmarshalTypeError:
		response.Message = fmt.Sprintf("Invalid data type for field '%s'", err.Field)
	default:
		response.Message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// jsonWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
