package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/simurgh/internal/middleware"
	"github.com/xxxsen/simurgh/internal/pkg/errcode"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		logger.Debug("request failed")
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrNotFound):
		logger.Debug("request failed")
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrVerificationFailed):
		logger.Info("request failed")
		response.Error(c, errcode.ErrVerificationFailed, "identity verification failed")
	case errors.Is(err, appErr.ErrClockSkew):
		logger.Info("request failed")
		response.Error(c, errcode.ErrClockSkew, "client clock out of range")
	case errors.Is(err, appErr.ErrInvalid):
		logger.Debug("request failed")
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		logger.Debug("request failed")
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	default:
		logger.Error("request failed")
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, errcode.ErrInvalid, message)
}
