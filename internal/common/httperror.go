package common

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// JSONErrorHandler renders errors as {"detail": "..."}. Errors that are not
// echo.HTTPError become 500 with the underlying message.
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Internal != nil {
			slog.Debug("http error", "status", code, "internal", he.Internal)
		}
		switch msg := he.Message.(type) {
		case string:
			detail = msg
		case error:
			detail = msg.Error()
		default:
			detail = fmt.Sprint(msg)
		}
	}
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request().Method, "uri", c.Request().RequestURI, "status", code, "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, ErrorResponse{Detail: detail})
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
