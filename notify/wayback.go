package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/tootsite/domain"
	"github.com/deemkeen/tootsite/util"
	"golang.org/x/time/rate"
)

// Notifier tells an external service about a published page
type Notifier interface {
	Notify(ctx context.Context, url string) error
}

// Wayback asks the Internet Archive to snapshot a URL
type Wayback struct {
	client    *http.Client
	endpoint  string
	userAgent string
	retries   int
	backoff   time.Duration
	limiter   *rate.Limiter
	logger    *log.Logger
}

func NewWayback(conf util.WaybackConf, logger *log.Logger) *Wayback {
	timeout := time.Duration(conf.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	limit := rate.Inf
	if conf.IntervalSeconds > 0 {
		limit = rate.Every(time.Duration(conf.IntervalSeconds) * time.Second)
	}

	return &Wayback{
		client:    &http.Client{Timeout: timeout},
		endpoint:  conf.Endpoint,
		userAgent: conf.UserAgent,
		retries:   conf.Retries,
		backoff:   time.Second,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Notify requests a snapshot of url, retrying with linear backoff.
// Every failure is reported as ErrNotification.
func (w *Wayback) Notify(ctx context.Context, url string) error {
	target := w.endpoint + url

	var lastErr error
	attempts := w.retries + 1
	for i := 0; i < attempts; i++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrNotification, url, err)
		}

		lastErr = w.request(ctx, target)
		if lastErr == nil {
			w.logger.Debug("Wayback: snapshot requested", "url", url, "attempt", i+1)
			return nil
		}
		w.logger.Debug("Wayback: attempt failed", "url", url, "attempt", i+1, "err", lastErr)

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", domain.ErrNotification, url, ctx.Err())
		case <-time.After(time.Duration(i+1) * w.backoff):
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrNotification, url, lastErr)
}

func (w *Wayback) request(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}
