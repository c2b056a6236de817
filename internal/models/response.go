package models

// Response is the envelope every JSON endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

// ListResponse wraps a list result; count is always present, even when zero.
func ListResponse(message string, data interface{}, count int) Response {
	return Response{Success: true, Message: message, Data: data, Count: &count}
}

// ErrorResponse wraps a failure message
func ErrorResponse(message string) Response {
	return Response{Success: false, Message: message}
}

// KindErrorResponse wraps a failure message together with its error kind
func KindErrorResponse(kind, message string) Response {
	return Response{Success: false, Error: kind, Message: message}
}
