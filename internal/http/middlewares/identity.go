package middleware

import (
	"github.com/labstack/echo/v4"

	apperrors "task-timer.com/task-timer/internal/errors"
)

const (
	OwnerHeader  = "X-Owner-ID"
	DeviceHeader = "X-Device-ID"

	ownerKey  = "owner_id"
	deviceKey = "device_id"
)

// Identity reads the owner and device ids supplied by the session layer in
// front of this service. The owner is trusted as given.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			owner := c.Request().Header.Get(OwnerHeader)
			if owner == "" {
				return apperrors.ErrOwnerIDRequired
			}
			c.Set(ownerKey, owner)
			c.Set(deviceKey, c.Request().Header.Get(DeviceHeader))
			return next(c)
		}
	}
}

func OwnerID(c echo.Context) string {
	owner, _ := c.Get(ownerKey).(string)
	return owner
}

func DeviceID(c echo.Context) string {
	device, _ := c.Get(deviceKey).(string)
	return device
}
