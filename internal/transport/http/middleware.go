package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler set the status before logging
				c.Error(err)
			}
			req := c.Request()
			entry := log.WithFields(logrus.Fields{
				"method":   req.Method,
				"path":     c.Path(),
				"uri":      req.RequestURI,
				"status":   c.Response().Status,
				"duration": time.Since(start).String(),
			})
			if c.Response().Status >= 500 {
				entry.Warn("request")
			} else {
				entry.Debug("request")
			}
			return nil
		}
	}
}
