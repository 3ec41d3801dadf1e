package auth

import "net/http"

// Error 携带 HTTP 状态码的业务错误，由 API 层翻译为响应。
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// BadRequest 返回 400 错误。
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// Unauthorized 返回 401 错误。
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// Forbidden 返回 403 错误。
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

// NotFound 返回 404 错误。
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

// Conflict 返回 409 错误。
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Message: message}
}
