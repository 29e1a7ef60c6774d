package appwrite

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"todosync/internal/todo"
)

// APIError is the error body Appwrite returns with non-2xx responses.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("appwrite %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("appwrite %d: %s", e.Status, e.Message)
}

// Unwrap maps missing documents onto todo.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return todo.ErrNotFound
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(b) > 0 {
		if jsonErr := json.Unmarshal(b, apiErr); jsonErr != nil {
			apiErr.Message = string(b)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
