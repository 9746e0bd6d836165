package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nholik/uptime-sentinel/internal/history"
	"github.com/rs/zerolog"
)

const (
	// DefaultTargetURL is the endpoint probed when none is configured.
	DefaultTargetURL = "http://ismycomputeron.com/"
	// DefaultTimeout bounds a single probe.
	DefaultTimeout = time.Second

	drainLimit = 64 << 10
)

// Prober performs a single reachability check.
type Prober interface {
	Check(ctx context.Context) history.State
}

// HTTPProber checks reachability with a single bounded GET request.
type HTTPProber struct {
	url     string
	timeout time.Duration
	client  *retryablehttp.Client
	logger  zerolog.Logger
}

// NewHTTPProber constructs an HTTPProber for the given URL and timeout.
func NewHTTPProber(url string, timeout time.Duration, logger zerolog.Logger) (*HTTPProber, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("target url must not be empty")
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be greater than zero")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	// Surface the transport error itself rather than a "giving up" wrapper.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}

	return &HTTPProber{
		url:     url,
		timeout: timeout,
		client:  client,
		logger:  logger,
	}, nil
}

// Check returns StateReachable when a response is received, whatever its
// status, and StateUnreachable on any transport error or timeout.
func (p *HTTPProber) Check(ctx context.Context) history.State {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Info().Err(err).Str("url", p.url).Msg("probe request invalid")
		return history.StateUnreachable
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Info().Err(err).Str("url", p.url).Msg("probe failed")
		return history.StateUnreachable
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	p.logger.Debug().Str("url", p.url).Int("status", resp.StatusCode).Msg("probe succeeded")
	return history.StateReachable
}
