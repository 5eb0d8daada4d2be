package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

// ErrorHandler renders errors that handlers attached with c.Error and did
// not answer themselves. A status set by the handler counts as an answer.
// Internal errors are logged and masked.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || c.Writer.Status() != http.StatusOK || len(c.Errors) == 0 {
			return
		}
		status, body := Render(c.Errors.Last().Err)
		if status >= http.StatusInternalServerError {
			logger.L().WithFields(logrus.Fields{
				"error":  c.Errors.Last().Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("request error")
		}
		c.JSON(status, body)
	}
}

// Render maps err to a status and response body. Only AppErrors expose
// their message; anything else is an internal error.
func Render(err error) (int, dto.ErrorResponse) {
	appErr, ok := apperror.As(err)
	if !ok {
		return http.StatusInternalServerError, dto.ErrorResponse{Detail: "internal server error"}
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError && appErr.Code != apperror.ErrCodeUpstream {
		return appErr.HTTPStatus, dto.ErrorResponse{Detail: "internal server error"}
	}
	return appErr.HTTPStatus, dto.ErrorResponse{Detail: appErr.Message, Errors: appErr.Fields}
}
