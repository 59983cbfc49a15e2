package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	dto "task-timer.com/task-timer/internal/data_models"
	apperrors "task-timer.com/task-timer/internal/errors"
	middleware "task-timer.com/task-timer/internal/http/middlewares"
	"task-timer.com/task-timer/internal/http/validators"
	model "task-timer.com/task-timer/internal/models"
	"task-timer.com/task-timer/internal/services"
)

type Handler struct {
	taskService *services.TaskService
	runs        *services.RunStateController
	guard       *services.ConcurrencyGuard
	clock       func() time.Time
}

func NewHandler(
	taskService *services.TaskService,
	runs *services.RunStateController,
	guard *services.ConcurrencyGuard,
) *Handler {
	return &Handler{
		taskService: taskService,
		runs:        runs,
		guard:       guard,
		clock:       time.Now,
	}
}

func (h *Handler) CreateTask(c echo.Context) error {
	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateTaskRequest(&req); err != nil {
		return err
	}

	now := h.clock()
	task, err := h.taskService.CreateTask(c.Request().Context(), middleware.OwnerID(c), services.CreateTaskInput{
		Name:                  req.Name,
		CategoryPath:          req.CategoryPath,
		InstanceTag:           req.InstanceTag,
		ParentID:              req.ParentID,
		Date:                  req.Date,
		Order:                 req.Order,
		InitialElapsedSeconds: req.InitialElapsedSeconds,
		StartRunning:          req.StartRunning,
	}, middleware.DeviceID(c), now)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.NewTaskResponse(task, now))
}

func (h *Handler) GetTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.GetTask(c.Request().Context(), middleware.OwnerID(c), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.clock()))
}

func (h *Handler) ListTasks(c echo.Context) error {
	tasks, err := h.taskService.ListTasks(c.Request().Context(), middleware.OwnerID(c), services.Query{
		Date:      c.QueryParam("date"),
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": dto.NewTaskListResponse(tasks, h.clock()),
	})
}

func (h *Handler) ListRunning(c echo.Context) error {
	tasks, err := h.taskService.ListRunning(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": dto.NewTaskListResponse(tasks, h.clock()),
	})
}

func (h *Handler) ListDates(c echo.Context) error {
	dates, err := h.taskService.ListDates(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"dates": dates})
}

func (h *Handler) UpdateTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateUpdateTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.guard.Update(c.Request().Context(), middleware.OwnerID(c), id, services.Fields{
		Name:         req.Name,
		CategoryPath: req.CategoryPath,
		InstanceTag:  req.InstanceTag,
		ParentID:     req.ParentID,
		Order:        req.Order,
		Date:         req.Date,
	}, req.ExpectedVersion, middleware.DeviceID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.clock()))
}

func (h *Handler) UpdateOrder(c echo.Context) error {
	var req dto.UpdateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateUpdateOrderRequest(&req); err != nil {
		return err
	}

	orders := make([]services.OrderUpdate, 0, len(req.TaskOrders))
	for _, o := range req.TaskOrders {
		orders = append(orders, services.OrderUpdate{ID: o.ID, Order: o.Order})
	}

	tasks, err := h.taskService.UpdateOrder(c.Request().Context(), middleware.OwnerID(c), orders)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": dto.NewTaskListResponse(tasks, h.clock()),
	})
}

func (h *Handler) DeleteTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	deleted, err := h.taskService.DeleteTask(c.Request().Context(), middleware.OwnerID(c), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted})
}

func (h *Handler) StartTask(c echo.Context) error {
	return h.transition(c, func(owner, id string, now time.Time) (*model.Task, error) {
		return h.runs.Start(c.Request().Context(), owner, id, middleware.DeviceID(c), now)
	})
}

func (h *Handler) ResumeTask(c echo.Context) error {
	return h.transition(c, func(owner, id string, now time.Time) (*model.Task, error) {
		return h.runs.Resume(c.Request().Context(), owner, id, middleware.DeviceID(c), now)
	})
}

func (h *Handler) PauseTask(c echo.Context) error {
	return h.transition(c, func(owner, id string, now time.Time) (*model.Task, error) {
		return h.runs.Pause(c.Request().Context(), owner, id, now)
	})
}

func (h *Handler) StopTask(c echo.Context) error {
	return h.transition(c, func(owner, id string, now time.Time) (*model.Task, error) {
		return h.runs.Stop(c.Request().Context(), owner, id, now)
	})
}

func (h *Handler) transition(c echo.Context, fn func(owner, id string, now time.Time) (*model.Task, error)) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	now := h.clock()
	task, err := fn(middleware.OwnerID(c), id, now)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.NewTaskResponse(task, now))
}

func taskID(c echo.Context) (string, error) {
	id := c.Param("id")
	if id == "" {
		return "", apperrors.ErrTaskIDRequired
	}
	return id, nil
}
