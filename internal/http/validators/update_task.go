package validators

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	dto "task-timer.com/task-timer/internal/data_models"
)

func ValidateUpdateTaskRequest(r *dto.UpdateTaskRequest) error {
	if r.Name == nil && r.CategoryPath == nil && r.InstanceTag == nil &&
		r.ParentID == nil && r.Order == nil && r.Date == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no fields to update")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name must not be empty")
	}
	if r.ExpectedVersion != nil && *r.ExpectedVersion == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "expectedVersion must be positive")
	}
	return nil
}

func ValidateUpdateOrderRequest(r *dto.UpdateOrderRequest) error {
	if len(r.TaskOrders) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "taskOrders is required")
	}
	for _, o := range r.TaskOrders {
		if o.ID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "task id is required")
		}
	}
	return nil
}
