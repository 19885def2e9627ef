package http

import (
	stdhttp "net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const internalErrorMessage = "Something went wrong. Please try again."

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	status  int
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (e *errorResponse) Error() string {
	return e.Message
}

func (e *errorResponse) GetStatus() int {
	return e.status
}

func init() {
	huma.NewError = newErrorResponse
}

// newErrorResponse replaces huma's problem+json errors. Request validation
// failures are reported as 400 and server-side detail is never echoed.
func newErrorResponse(status int, message string, errs ...error) huma.StatusError {
	if status == stdhttp.StatusUnprocessableEntity {
		status = stdhttp.StatusBadRequest
	}

	if status >= stdhttp.StatusInternalServerError {
		if message == "" {
			message = internalErrorMessage
		}
		return &errorResponse{status: status, Message: message}
	}

	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		details = append(details, err.Error())
	}
	if len(details) > 0 {
		message = strings.TrimSuffix(message, ".") + ": " + strings.Join(details, "; ")
	}
	if message == "" {
		message = stdhttp.StatusText(status)
	}

	return &errorResponse{status: status, Message: message}
}
