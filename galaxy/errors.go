package galaxy

import (
	"encoding/json"
	"fmt"
)

// RemoteError is returned for every non-success response from galaxy
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // galaxy's err_msg when present, otherwise the body
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%v %v: HTTP status %d: %v", e.Method, e.Path, e.StatusCode, e.Message)
}

type errorBody struct {
	Message string `json:"err_msg"`
	Code    int    `json:"err_code"`
}

func remoteError(method, path string, status int, body []byte) *RemoteError {
	e := &RemoteError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       string(body),
		Message:    string(body),
	}
	parsed := &errorBody{}
	if err := json.Unmarshal(body, parsed); err == nil && parsed.Message != "" {
		e.Message = parsed.Message
	}
	return e
}
