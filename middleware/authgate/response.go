package authgate

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/sessiongate/services/autherror"
)

// ErrorBody is the only shape an authentication or authorization failure is ever rendered in.
// It never says which check failed.
type ErrorBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

const (
	messageUnauthorized = "Authentication is required to access this resource"
	messageForbidden    = "You do not have permission to access this resource"
	messageInternal     = "Authentication could not be processed"
)

func newErrorBody(status int, message string) ErrorBody {
	return ErrorBody{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
	}
}

// RespondError renders err with the uniform body: 401 for authentication failures, 500 for
// everything else.
func RespondError(c echo.Context, err error) error {
	status := autherror.Status(err)
	message := messageUnauthorized
	if status != http.StatusUnauthorized {
		status = http.StatusInternalServerError
		message = messageInternal
	}
	return c.JSON(status, newErrorBody(status, message))
}

func respondForbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, newErrorBody(http.StatusForbidden, messageForbidden))
}
