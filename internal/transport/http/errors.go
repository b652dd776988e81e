package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"teach-quiz-service/internal/domain"
)

// statusFor maps a use-case error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// newHTTPErrorHandler renders every handler error as {"error": ...}. Validation
// errors carry a field map instead.
func newHTTPErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code    int
			message interface{}
		)

		var httpErr *echo.HTTPError
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &httpErr):
			code = httpErr.Code
			message = echo.Map{"error": httpErr.Message}
		case errors.As(err, &validationErr):
			code = http.StatusBadRequest
			if len(validationErr.Fields) > 0 {
				fields := make(map[string]string, len(validationErr.Fields))
				for _, f := range validationErr.Fields {
					fields[f.Field] = f.Error
				}
				message = echo.Map{"error": validationErr.Msg, "fields": fields}
			} else {
				message = echo.Map{"error": validationErr.Msg}
			}
		default:
			code = statusFor(err)
			if code == http.StatusInternalServerError {
				log.WithError(err).WithField("path", c.Path()).Error("request failed")
				message = echo.Map{"error": http.StatusText(code)}
			} else {
				message = echo.Map{"error": userMessage(err)}
			}
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			log.WithError(err).Warn("write error response")
		}
	}
}

// userMessage prefers the concrete domain message over wrapping context.
func userMessage(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return domainErr.Msg
	}
	return err.Error()
}
