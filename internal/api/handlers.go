// Package api contains the HTTP handlers for the workflow service.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"approvalflow/backend/internal/domain"
)

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK).
func HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "approvalflow",
		Version:   "1.0.0",
	})
}

// httpError maps the domain error taxonomy onto HTTP statuses. Errors from
// outside the taxonomy map to 500.
func httpError(err error) error {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindBadRequest:
		status = http.StatusBadRequest
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindConflict:
		status = http.StatusConflict
	}
	return echo.NewHTTPError(status, err.Error())
}
