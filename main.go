package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/e2b-dev/infra/packages/memdev/internal/api"
	"github.com/e2b-dev/infra/packages/memdev/internal/cfg"
	"github.com/e2b-dev/infra/packages/memdev/internal/host"
	"github.com/e2b-dev/infra/packages/memdev/internal/logger"
	"github.com/e2b-dev/infra/packages/memdev/internal/nbd"
	"github.com/e2b-dev/infra/packages/memdev/pkg/memdev"
)

const shutdownTimeout = 10 * time.Second

var commitSHA string

func main() {
	port := flag.Uint("port", 0, "http server port, overrides HTTP_PORT")
	flag.Parse()

	config, err := cfg.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if *port > 0 {
		if *port > 65535 {
			log.Fatalf("%d is larger than maximum possible port 65535", *port)
		}

		config.HTTPPort = uint16(*port)
	}

	success := run(config)
	if !success {
		os.Exit(1)
	}
}

func run(config cfg.Config) (success bool) {
	success = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig, sigCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	globalLogger := zap.Must(logger.NewLogger(ctx, logger.LoggerConfig{
		ServiceName:   config.ServiceName,
		IsInternal:    !config.IsLocal(),
		IsDevelopment: config.IsLocal(),
		IsDebug:       config.Debug,
		InitialFields: []zap.Field{zap.String("commit", commitSHA)},
	}))
	defer func(l *zap.Logger) {
		err := l.Sync()
		if err != nil {
			log.Printf("error while shutting down logger: %v", err)
			success = false
		}
	}(globalLogger)
	zap.ReplaceGlobals(globalLogger)

	device := memdev.NewWithBlockSize(config.Capacity, config.BlockSize)
	deviceHost := host.New(device, globalLogger)

	zap.L().Info("Starting memory device",
		zap.String("capacity", humanize.IBytes(uint64(config.Capacity))),
		zap.Int64("block_size", config.BlockSize),
	)

	serviceError := make(chan error, 2)

	g, gctx := errgroup.WithContext(sig)

	httpServer := api.NewServer(gctx, config.HTTPPort, globalLogger, deviceHost)

	g.Go(func() error {
		zap.L().Info("Starting http server", zap.Uint16("port", config.HTTPPort))

		httpErr := httpServer.ListenAndServe()
		if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			httpErr = fmt.Errorf("http server: %w", httpErr)
			serviceError <- httpErr

			return httpErr
		}

		return nil
	})

	if config.NBDEnabled() {
		nbdServer := nbd.NewServer(nbd.NewBackend(device), nbd.Options{
			SocketPath: config.NBDSocketPath,
			BlockSize:  uint32(config.BlockSize),
			ReadOnly:   config.NBDReadOnly,
		}, globalLogger)

		g.Go(func() error {
			nbdErr := nbdServer.Run(gctx)
			if nbdErr != nil && !errors.Is(nbdErr, context.Canceled) {
				nbdErr = fmt.Errorf("nbd server: %w", nbdErr)
				serviceError <- nbdErr

				return nbdErr
			}

			return nil
		})
	}

	// Wait for the shutdown signal or if some service fails
	select {
	case <-sig.Done():
		zap.L().Info("Shutdown signal received")
	case serviceErr := <-serviceError:
		zap.L().Error("Service error", zap.Error(serviceErr))
		success = false
	}

	sigCancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("error during http server shutdown", zap.Error(err))
		success = false
	}

	if err := deviceHost.CloseAll(); err != nil {
		zap.L().Error("error closing sessions", zap.Error(err))
		success = false
	}

	zap.L().Info("Waiting for services to finish")
	if err := g.Wait(); err != nil {
		zap.L().Error("service group error", zap.Error(err))
		success = false
	}

	return success
}
