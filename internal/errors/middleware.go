package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waveform-labs/pluginhost/internal/logger"
)

// ErrorHandler converts an AppError left on the gin context into a
// consistent JSON response. Used by the devtools inspector's HTTP surface.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		if appErr, ok := err.Err.(*AppError); ok {
			if appErr.StatusCode >= 500 {
				logger.Devtools().Error().Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
			} else {
				logger.Devtools().Warn().Str("code", appErr.Code).Msg(appErr.Message)
			}
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			return
		}

		logger.Devtools().Error().Err(err.Err).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   ErrCodeInternal,
			Message: "an unexpected error occurred",
			Code:    ErrCodeInternal,
		})
	}
}

// Recovery recovers from a panic inside a devtools handler.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Devtools().Error().Interface("panic", r).Msg("recovered from panic")
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error:   ErrCodeInternal,
					Message: "an unexpected error occurred",
					Code:    ErrCodeInternal,
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// HandleError is a helper for responding to a handler-level error.
func HandleError(c *gin.Context, err error) {
	if appErr, ok := err.(*AppError); ok {
		c.Error(appErr)
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}
	internalErr := Internal(err.Error())
	c.Error(internalErr)
	c.JSON(internalErr.StatusCode, internalErr.ToResponse())
}

// AbortWithError aborts the request immediately with an AppError.
func AbortWithError(c *gin.Context, err *AppError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
