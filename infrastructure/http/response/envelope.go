package response

import (
	"encoding/json"
	"net/http"

	domainerr "github.com/expensetrack/expensetrack/domain/error"
)

type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(envelope)
}

func Success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

func Error(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Envelope{Status: false, Message: message})
}

// AppError writes err using its catalog code and status. Details and causes
// are never exposed.
func AppError(w http.ResponseWriter, err error) {
	appErr := domainerr.AsAppError(err)
	WriteJSON(w, appErr.HTTPStatus(), Envelope{
		Status:  false,
		Message: appErr.Message,
		Code:    string(appErr.Code),
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, Envelope{Message: message, Code: string(domainerr.ErrCodeInvalidRequest)})
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

func MethodNotAllowed(w http.ResponseWriter) {
	Error(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func InternalServerError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusInternalServerError, Envelope{Message: message, Code: string(domainerr.ErrCodeInternalServerError)})
}
