// Package httpx holds the Echo wiring shared by all three services: error
// mapping from internal/merr, loopback-friendly CORS, and request logging.
package httpx

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/merr"
)

// NewEcho builds an Echo instance with the logging, recovery, and CORS
// middleware every service uses, plus the shared error handler that maps
// merr.Kind onto the HTTP statuses named in the specification.
func NewEcho(log *logrus.Entry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(RequestLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return isLoopbackOrigin(origin), nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.HTTPErrorHandler = ErrorHandler(log)
	return e
}

// RequestLogger emits one structured log line per request.
func RequestLogger(log *logrus.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			fields := logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
				"status": c.Response().Status,
			}
			if err != nil {
				log.WithFields(fields).WithError(err).Warn("request failed")
			} else {
				log.WithFields(fields).Debug("request handled")
			}
			return err
		}
	}
}

// ErrorHandler translates merr.Error (and any other error) into the JSON
// error envelope clients expect, using merr.HTTPStatus for the mapping.
func ErrorHandler(log *logrus.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := err.Error()

		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		} else {
			status = merr.HTTPStatus(merr.KindOf(err))
		}

		if status >= 500 {
			correlationID := uuid.NewString()
			log.WithError(err).WithField("correlation_id", correlationID).Error("internal error")
			message = "internal error (" + correlationID + ")"
		}
		if jsonErr := c.JSON(status, map[string]string{"error": message}); jsonErr != nil {
			log.WithError(jsonErr).Error("failed to write error response")
		}
	}
}

// isLoopbackOrigin allows only loopback origins and browser extension
// origins, per the specification's CORS policy.
func isLoopbackOrigin(origin string) bool {
	switch {
	case origin == "http://localhost" || origin == "http://127.0.0.1":
		return true
	case hasLoopbackHost(origin):
		return true
	case hasPrefix(origin, "chrome-extension://"), hasPrefix(origin, "moz-extension://"), hasPrefix(origin, "safari-web-extension://"):
		return true
	default:
		return false
	}
}

func hasLoopbackHost(origin string) bool {
	for _, host := range []string{"http://localhost:", "http://127.0.0.1:"} {
		if hasPrefix(origin, host) {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
