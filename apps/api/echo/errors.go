package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/user"
)

const invalidDataMsg = "Invalid data"

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, user.ErrAccountDeactivated.Error())
)

func fieldsMap(fErrs []core.FieldError) echo.Map {
	flds := make(echo.Map, len(fErrs))
	for _, fErr := range fErrs {
		flds[fErr.Field] = fErr.Error
	}
	return flds
}

func errorMsg(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		body := make(echo.Map, 2)

		cause := errors.Cause(err)
		if cause == user.ErrAccountDeactivated {
			cause = errAccountDeactivated
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				body["error"] = msg
			} else {
				body["error"] = fmt.Sprint(origErr.Message)
			}
		case validator.ValidationErrors:
			flds := make(echo.Map, len(origErr))
			for _, vErr := range origErr {
				flds[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			body["error"] = invalidDataMsg
			body["fields"] = flds
		case *core.ValidationError:
			code = http.StatusBadRequest
			body["error"] = errorMsg(origErr, invalidDataMsg)
			if len(origErr.Fields) > 0 {
				body["fields"] = fieldsMap(origErr.Fields)
			}
		case *core.ConflictError:
			code = http.StatusBadRequest
			body["error"] = origErr.Error()
			if origErr.Flag != "" {
				body[origErr.Flag] = true
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			body["error"] = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			body["error"] = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Name = claims.Name
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			if ctx.Echo().Debug {
				body["debug"] = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
