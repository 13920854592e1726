package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/memdev/internal/host"
	"github.com/e2b-dev/infra/packages/memdev/pkg/memdev"
)

type Error struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

type Session struct {
	ID     string `json:"id"`
	Offset int64  `json:"offset"`
}

type WriteResult struct {
	Written int64 `json:"written"`
	Offset  int64 `json:"offset"`
}

type SeekRequest struct {
	Delta  int64  `json:"delta"`
	Whence string `json:"whence" binding:"required"`
}

type SeekResult struct {
	Offset int64 `json:"offset"`
}

type ControlRequest struct {
	Code *uint32 `json:"code" binding:"required"`
}

type APIStore struct {
	logger *zap.Logger
	host   *host.Host
}

func NewAPIStore(logger *zap.Logger, h *host.Host) *APIStore {
	return &APIStore{
		logger: logger,
		host:   h,
	}
}

func (a *APIStore) sendAPIStoreError(c *gin.Context, code int, message string) {
	apiErr := Error{
		Code:    int32(code),
		Message: message,
	}

	c.Error(errors.New(message))
	c.AbortWithStatusJSON(code, apiErr)
}

// sendDeviceError maps device and host errors onto HTTP statuses.
func (a *APIStore) sendDeviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, host.ErrSessionNotFound):
		a.sendAPIStoreError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, memdev.ErrInvalidSeek),
		errors.Is(err, memdev.ErrUnsupportedOperation),
		errors.Is(err, memdev.ErrTransferFault),
		errors.Is(err, memdev.ErrSessionClosed):
		a.sendAPIStoreError(c, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("unexpected device error", zap.Error(err))
		a.sendAPIStoreError(c, http.StatusInternalServerError, "internal error")
	}
}
