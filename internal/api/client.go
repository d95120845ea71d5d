package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"chess-archiver/internal/config"
	"chess-archiver/internal/constants"
	"chess-archiver/internal/domain"
)

// GameSource is the capability contract implemented by every platform
// client. The set of variants is closed: chess.com and lichess.
type GameSource interface {
	Platform() domain.Platform
	FetchGames(ctx context.Context, username string, window domain.TimeWindow, maxGames int, timeControls []domain.TimeControl) ([]string, error)
}

// NewSources builds the platform-tag dispatch table used by the collector.
func NewSources(chessCom *ChessComClient, lichess *LichessClient) map[domain.Platform]GameSource {
	return map[domain.Platform]GameSource{
		domain.PlatformChessCom: chessCom,
		domain.PlatformLichess:  lichess,
	}
}

// apiClient is the shared rate-limited HTTP transport. One instance per
// platform client; the minimum inter-request delay is enforced per instance,
// not globally.
type apiClient struct {
	http      *fasthttp.Client
	userAgent string
	delay     time.Duration
	logger    zerolog.Logger

	mu          sync.Mutex
	lastRequest time.Time

	sleep func(ctx context.Context, d time.Duration) error
}

func newAPIClient(cfg *config.Config, logger zerolog.Logger) *apiClient {
	return &apiClient{
		http: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		userAgent: cfg.UserAgent,
		delay:     cfg.RequestDelay,
		logger:    logger,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// get performs one rate-limited GET. A 429 response sleeps for the
// server-provided Retry-After (default 60s) and retries the same request
// with no retry cap. 404 and 403 are expected conditions returned as an
// empty body with their status code, never as errors.
func (c *apiClient) get(ctx context.Context, url, accept string) ([]byte, int, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, 0, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.Do(req, resp)
	}
	if err != nil {
		return nil, 0, err
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusTooManyRequests:
		wait := retryAfter(resp)
		c.logger.Warn().
			Str("url", url).
			Dur("retry_after", wait).
			Msg("rate limit exceeded, backing off")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, status, err
		}
		return c.get(ctx, url, accept)
	case status == fasthttp.StatusNotFound || status == fasthttp.StatusForbidden:
		c.logger.Debug().
			Str("url", url).
			Int("status", status).
			Msg("resource unavailable, treating as empty")
		return nil, status, nil
	case status != fasthttp.StatusOK:
		return nil, status, fmt.Errorf("unexpected status %d from %s", status, url)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, status, nil
}

func (c *apiClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.delay - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		return c.sleep(ctx, wait)
	}
	return nil
}

func retryAfter(resp *fasthttp.Response) time.Duration {
	if v := string(resp.Header.Peek("Retry-After")); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return constants.DefaultRetryAfter
}
