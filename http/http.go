package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ListenAndServe starts the given servers and blocks until they all stopped.
// Servers are shut down when ctx is canceled and get shutdownTimeout to
// drain their connections. The first unexpected server error is returned.
func ListenAndServe(ctx context.Context, shutdownTimeout time.Duration, servers ...*http.Server) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.Newf("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup
	var errOnce sync.Once
	var serveErr error

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")

			default:
				err = errors.Newf("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err)
				logs.Warn(err)
				errOnce.Do(func() { serveErr = err })
			}
		}(s)
	}

	wg.Wait()
	return serveErr
}

// MetricsPathFormatter returns empty string on HTTP 301, 400, 404 or 405
// statusCode. Profiling paths are reported as a single path.
func MetricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}

	if strings.HasPrefix(path, "/debug/pprof") {
		return "/debug/pprof"
	}
	return path
}
