package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/services/upload"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionRevoked = echo.NewHTTPError(http.StatusUnauthorized, "session has been revoked")
	errRefreshExpired = echo.NewHTTPError(http.StatusUnauthorized, "refresh has expired")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")
	errMissingFile    = echo.NewHTTPError(http.StatusBadRequest, "file is required")
)

type errorResponse struct {
	Error  string            `json:"error"`
	Errors []core.FieldError `json:"errors,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code = http.StatusInternalServerError
			resp errorResponse
		)

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				resp.Error = "missing or malformed jwt"
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(code)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp.Error = origErr.Error()
			resp.Errors = origErr.Fields
		case *core.NotFoundError:
			code = http.StatusNotFound
			resp.Error = origErr.Error()
		case *core.PreconditionError:
			code = http.StatusBadRequest
			resp.Error = origErr.Error()
		default:
			switch cause {
			case registration.ErrInvalidCredentials:
				code = http.StatusUnauthorized
				resp.Error = cause.Error()
			case registration.ErrInactive:
				code = http.StatusForbidden
				resp.Error = cause.Error()
			case upload.ErrTooLarge:
				code = http.StatusRequestEntityTooLarge
				resp.Error = cause.Error()
			case upload.ErrUnsupportedType:
				code = http.StatusUnsupportedMediaType
				resp.Error = cause.Error()
			default: // any other error is a server error
				resp.Error = http.StatusText(http.StatusInternalServerError)
				actor, _ := audit.ActorFrom(ctx.Request().Context())
				logger.Error(resp.Error, errors.Wrap(err, resp.Error), actor)

				if ctx.Echo().Debug {
					resp.Error = err.Error()
				}
				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
