package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/memdev/internal/host"
)

const (
	maxReadTimeout  = 30 * time.Second
	maxWriteTimeout = 30 * time.Second
	idleTimeout     = 620 * time.Second
)

func NewHandler(logger *zap.Logger, h *host.Host) http.Handler {
	store := NewAPIStore(logger, h)

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", store.GetHealth)
	engine.GET("/device", store.GetDevice)
	engine.POST("/control", store.PostControl)

	sessions := engine.Group("/sessions")
	sessions.POST("", store.PostSessions)
	sessions.GET("/:id", store.GetSession)
	sessions.DELETE("/:id", store.DeleteSession)
	sessions.GET("/:id/data", store.GetSessionData)
	sessions.PUT("/:id/data", store.PutSessionData)
	sessions.POST("/:id/seek", store.PostSessionSeek)

	return engine
}

func NewServer(ctx context.Context, port uint16, logger *zap.Logger, h *host.Host) *http.Server {
	return &http.Server{
		Handler: NewHandler(logger, h),
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),

		ReadTimeout:  maxReadTimeout,
		WriteTimeout: maxWriteTimeout,
		IdleTimeout:  idleTimeout,

		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}
