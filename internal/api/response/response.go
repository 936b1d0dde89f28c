package response

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Data any `json:"data"`
	// Warning is set when the request succeeded but a follow-up step, such
	// as the notification email, did not.
	Warning string `json:"warning,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

// JSONWarning writes a 200 with both data and a user-facing warning.
func JSONWarning(w http.ResponseWriter, data any, warning string) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Warning: warning})
}

// CreatedWarning writes a 201 with both data and a user-facing warning.
func CreatedWarning(w http.ResponseWriter, data any, warning string) {
	writeJSON(w, http.StatusCreated, envelope{Data: data, Warning: warning})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
