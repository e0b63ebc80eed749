package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

type ErrorType string

const (
	ClientError ErrorType = "ClientError"
	ServerError ErrorType = "ServerError"
)

// Success is the envelope of every 2xx response.
type Success struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload"`
}

// AppError is the envelope of every 4xx/5xx response. It doubles as the error
// value returned by the store.
type AppError struct {
	Type    ErrorType `json:"type"`
	Name    string    `json:"name"`
	Message string    `json:"message"`
	status  int
}

func (e *AppError) Error() string {
	return e.Name + ": " + e.Message
}

// Is matches on Name so callers can compare against the sentinels below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Name == e.Name
	}
	return false
}

func (e *AppError) Status() int {
	if e.status != 0 {
		return e.status
	}
	if e.Type == ServerError {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func clientError(status int, name, message string) *AppError {
	return &AppError{Type: ClientError, Name: name, Message: message, status: status}
}

func serverError(name, message string) *AppError {
	return &AppError{Type: ServerError, Name: name, Message: message, status: http.StatusInternalServerError}
}

var (
	ErrUserExists        = clientError(http.StatusConflict, "UserExists", "a user with this email already exists")
	ErrUnregisteredUser  = clientError(http.StatusUnauthorized, "UnregisteredUser", "no user is registered with this email")
	ErrIncorrectPassword = clientError(http.StatusUnauthorized, "IncorrectPassword", "the password is incorrect")
	ErrMissingPassword   = clientError(http.StatusBadRequest, "MissingPassword", "password is required")
	ErrInvalidToken      = clientError(http.StatusUnauthorized, "InvalidToken", "the token is invalid or expired")
	ErrFailedAuth        = serverError("FailedAuthentication", "authentication could not be completed")
	ErrTokenError        = serverError("TokenError", "the token could not be issued")
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, name, message string, payload any) {
	writeJSON(w, status, Success{Name: name, Message: message, Payload: payload})
}

// writeError renders err as an AppError. Unknown errors become a generic
// server error.
func writeError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = serverError("UnknownError", err.Error())
	}
	writeJSON(w, appErr.Status(), appErr)
}
