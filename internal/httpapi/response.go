package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type apiEnvelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, apiEnvelope{Success: true, Data: data})
}

func fail(c echo.Context, status int, message string, details any) error {
	return c.JSON(status, apiEnvelope{
		Success: false,
		Error:   &apiError{Message: message, Details: details},
	})
}

func badRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, message, nil)
}

func notFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func internalError(c echo.Context, message string) error {
	return fail(c, http.StatusInternalServerError, message, nil)
}
