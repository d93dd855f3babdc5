package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Varun-CA-08/Airline/fanout"
)

const heartbeatInterval = 25 * time.Second

// streamNotifications keeps an SSE connection open and pushes every
// broadcast notification to the viewer. Periodic comment lines keep
// idle connections from being reaped by proxies.
func streamNotifications(hub *fanout.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)
		// Write an initial comment to ensure headers reach the client.
		if _, err := c.Response().Write([]byte(":ok\n\n")); err != nil {
			return nil
		}
		flusher.Flush()

		session := hub.Register()
		defer hub.Unregister(session)

		ctx := c.Request().Context()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, open := <-session.C():
				if !open {
					return nil
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(msg); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			case <-heartbeat.C:
				if _, err := c.Response().Write([]byte(":keepalive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}
