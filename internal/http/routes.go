package http

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	middleware "task-timer.com/task-timer/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int) {
	e.HTTPErrorHandler = ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	g := e.Group("/tasks", middleware.Identity(), middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	g.POST("", h.CreateTask)
	g.GET("", h.ListTasks)
	g.GET("/dates", h.ListDates)
	g.GET("/running", h.ListRunning)
	g.POST("/order", h.UpdateOrder)
	g.GET("/:id", h.GetTask)
	g.PUT("/:id", h.UpdateTask)
	g.DELETE("/:id", h.DeleteTask)
	g.POST("/:id/start", h.StartTask)
	g.POST("/:id/pause", h.PauseTask)
	g.POST("/:id/resume", h.ResumeTask)
	g.POST("/:id/stop", h.StopTask)
}
