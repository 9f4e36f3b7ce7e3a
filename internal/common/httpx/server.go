package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// shutdownGrace bounds how long Shutdown waits for in-flight requests.
// Open event streams never finish on their own, so the grace period is
// mostly for short requests caught mid-flight.
const shutdownGrace = 5 * time.Second

type Server struct{ *http.Server }

func New(addr string, h http.Handler) *Server {
	return &Server{Server: &http.Server{
		Addr:        addr,
		Handler:     h,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: SSE responses stay open for hours; the
		// stream handlers bound their own lifetime.
	}}
}

// Run serves until ctx is canceled. Shutdown drains short requests
// within the grace period; connections still open after that, which
// for this service means event streams, are closed hard. Stream
// clients are expected to have received a reconnect frame before Run's
// ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.Shutdown(sctx); err != nil {
		return s.Close()
	}
	return nil
}
