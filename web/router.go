package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// NewRouter serves the generated site in dir, read-only
func NewRouter(dir string, logger *log.Logger) *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(RequestLogMiddleware(logger))
	g.Use(ReadOnlyMiddleware())
	g.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(20), 40)))
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	g.StaticFS("/", gin.Dir(dir, false))
	return g
}

// Serve previews an output directory until ctx is cancelled
func Serve(ctx context.Context, addr, dir string, logger *log.Logger) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("serve %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("serve %s: not a directory", dir)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(dir, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serve: previewing site", "dir", dir, "url", "http://"+addr+"/")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Serve: stopping preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
