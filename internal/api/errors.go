package api

import (
	"encoding/json"
	"fmt"
)

// Error is a non-2xx backend response decoded per the API error contract.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *Error) Error() string {
	return e.Message
}

type errorBody struct {
	Detail  string              `json:"detail"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// decodeError builds an *Error from a response body. A body that is not
// parseable JSON, or carries no message, degrades to "HTTP <status>".
func decodeError(statusCode int, body []byte) *Error {
	apiErr := &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d", statusCode),
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}
	if parsed.Detail != "" {
		apiErr.Message = parsed.Detail
	} else if parsed.Message != "" {
		apiErr.Message = parsed.Message
	}
	apiErr.Fields = parsed.Errors
	return apiErr
}
