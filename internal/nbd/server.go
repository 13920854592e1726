package nbd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/pojntfx/go-nbd/pkg/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const exportName = "default"

type Options struct {
	SocketPath string
	BlockSize  uint32
	ReadOnly   bool
}

type Server struct {
	backend *Backend
	options Options
	logger  *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool
}

func NewServer(backend *Backend, options Options, logger *zap.Logger) *Server {
	return &Server{
		backend: backend,
		options: options,
		logger:  logger.With(zap.String("socket", options.SocketPath)),
		ready:   make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Ready is closed once the server listens on its socket.
func (n *Server) Ready() <-chan struct{} {
	return n.ready
}

// Run serves the device until ctx is cancelled.
func (n *Server) Run(ctx context.Context) error {
	err := os.Remove(n.options.SocketPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing socket path %s: %w", n.options.SocketPath, err)
	}

	var lc net.ListenConfig

	l, err := lc.Listen(ctx, "unix", n.options.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	defer os.Remove(n.options.SocketPath)

	go func() {
		<-ctx.Done()

		closeErr := l.Close()
		if closeErr != nil {
			n.logger.Error("failed to close listener", zap.Error(closeErr))
		}

		n.closeConns()
	}()

	n.readyOnce.Do(func() { close(n.ready) })

	n.logger.Info("serving device over nbd", zap.Int64("size", n.backend.Capacity()), zap.Bool("read_only", n.options.ReadOnly))

	var g errgroup.Group

	for {
		conn, acceptErr := l.Accept()
		if acceptErr != nil {
			select {
			case <-ctx.Done():
				waitErr := g.Wait()

				return errors.Join(ctx.Err(), waitErr)
			default:
				n.logger.Error("failed to accept connection", zap.Error(acceptErr))

				continue
			}
		}

		if !n.track(conn) {
			_ = conn.Close()

			continue
		}

		g.Go(func() error {
			n.handle(conn)

			return nil
		})
	}
}

func (n *Server) handle(conn net.Conn) {
	defer func() {
		n.untrack(conn)
		_ = conn.Close()

		if err := recover(); err != nil {
			n.logger.Error("recovering from NBD server panic", zap.Any("panic", err))
		}
	}()

	n.logger.Debug("client connected")

	err := server.Handle(
		conn,
		[]*server.Export{
			{
				Name:    exportName,
				Backend: n.backend,
			},
		},
		&server.Options{
			ReadOnly:           n.options.ReadOnly,
			MinimumBlockSize:   n.options.BlockSize,
			PreferredBlockSize: n.options.BlockSize,
			MaximumBlockSize:   n.options.BlockSize,
			SupportsMultiConn:  true,
		})
	if err != nil {
		n.logger.Debug("client disconnected with error", zap.Error(err))

		return
	}

	n.logger.Debug("client disconnected")
}

// track registers conn for shutdown. It reports false once closeConns has run.
func (n *Server) track(conn net.Conn) bool {
	n.connsMu.Lock()
	defer n.connsMu.Unlock()

	if n.closed {
		return false
	}

	n.conns[conn] = struct{}{}

	return true
}

func (n *Server) untrack(conn net.Conn) {
	n.connsMu.Lock()
	defer n.connsMu.Unlock()

	delete(n.conns, conn)
}

func (n *Server) closeConns() {
	n.connsMu.Lock()
	defer n.connsMu.Unlock()

	n.closed = true

	for conn := range n.conns {
		_ = conn.Close()
	}
}
