package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	dto "task-timer.com/task-timer/internal/data_models"
	apperrors "task-timer.com/task-timer/internal/errors"
)

// ErrorHandler renders every error as JSON. Version conflicts carry the
// versions so clients can decide between a silent refetch and a prompt.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := render(err)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"status": status,
		}).WithError(err).Error("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		log.WithError(err).Error("failed to write error response")
	}
}

func render(err error) (int, interface{}) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, dto.ErrorResponse{Error: msg}
	}

	err = apperrors.Report(err)

	var conflict *apperrors.VersionConflict
	if errors.As(err, &conflict) {
		return http.StatusConflict, dto.ConflictResponse{
			Error:            "task was changed elsewhere, refresh and retry",
			TaskID:           conflict.TaskID,
			TaskName:         conflict.TaskName,
			CurrentVersion:   conflict.CurrentVersion,
			RequestedVersion: conflict.RequestedVersion,
			IsFromSameDevice: conflict.IsFromSameDevice,
		}
	}

	var appErr *apperrors.Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode, dto.ErrorResponse{Error: appErr.Message}
	}
	return http.StatusInternalServerError, dto.ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
}
