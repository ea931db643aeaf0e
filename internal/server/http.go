package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"smart-tasks-backend/internal/config"
)

// NewHTTPServer wraps handler in an *http.Server configured from cfg. With
// SERVER_H2C set, cleartext HTTP/2 is accepted alongside HTTP/1.1.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	if cfg.ServerH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}
}

// Run ties the server to the fx lifecycle.
func Run(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("starting http server",
				zap.String("addr", ln.Addr().String()),
				zap.Bool("h2c", cfg.ServerH2C),
				zap.String("environment", cfg.Environment),
			)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server", zap.String("addr", srv.Addr))
			return srv.Shutdown(ctx)
		},
	})
}
