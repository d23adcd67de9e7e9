package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/service"
	"github.com/ipetrenko/tokensvc/internal/util"
)

// rejectionReasons are the terminal validation-pipeline outcomes; all of
// them surface as 401 with the bare sentinel message, so wrapped parser
// detail never reaches the caller.
var rejectionReasons = []error{
	service.ErrTokenInvalid,
	service.ErrTokenNotYetEligible,
	service.ErrRefreshTokenUnknown,
	service.ErrRefreshTokenAlreadyUsed,
	service.ErrRefreshTokenRevoked,
	service.ErrTokenBindingMismatch,
	service.ErrRefreshTokenExpired,
	service.ErrPrincipalNotFound,
	service.ErrInvalidCredentials,
}

// ErrorHandler maps the service error taxonomy to HTTP statuses. Internals
// are logged, never leaked.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if reason, ok := rejectionReason(err); ok {
			writeJSON(log, c, http.StatusUnauthorized, reason)
			return
		}

		var respErr util.ResponseError
		if errors.As(err, &respErr) {
			writeJSON(log, c, respErr.Status, respErr.Msg)
			return
		}

		switch {
		case errors.Is(err, service.ErrEmailTaken):
			writeJSON(log, c, http.StatusConflict, service.ErrEmailTaken.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			log.Errorw("store unavailable", "error", err, "uri", c.Request().RequestURI)
			writeJSON(log, c, http.StatusServiceUnavailable, service.ErrStoreUnavailable.Error())
		case errors.Is(err, service.ErrInternal):
			log.Errorw("internal error", "error", err, "uri", c.Request().RequestURI)
			writeJSON(log, c, http.StatusInternalServerError, service.ErrInternal.Error())
		default:
			he, ok := err.(*echo.HTTPError)
			if ok {
				if he.Code == http.StatusInternalServerError {
					log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
				}
				msg, _ := he.Message.(string)
				writeJSON(log, c, he.Code, msg)
				return
			}

			log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
			writeJSON(log, c, http.StatusInternalServerError, "internal server error")
		}
	}
}

func rejectionReason(err error) (string, bool) {
	for _, sentinel := range rejectionReasons {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func writeJSON(log *zap.SugaredLogger, c echo.Context, status int, reason string) {
	if err := c.JSON(status, models.ErrorResponse{Reason: reason}); err != nil {
		log.Errorw("failed to write json response", "error", err)
	}
}
