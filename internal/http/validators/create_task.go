package validators

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	dto "task-timer.com/task-timer/internal/data_models"
)

func ValidateCreateTaskRequest(r *dto.CreateTaskRequest) error {
	if strings.TrimSpace(r.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if r.InitialElapsedSeconds < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "initialElapsedSeconds must not be negative")
	}
	return nil
}
