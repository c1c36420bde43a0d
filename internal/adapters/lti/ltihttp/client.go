// Package ltihttp is the outbound HTTP transport shared by the LTI grade clients
package ltihttp

import (
	"context"
	stderrs "errors"
	"io"
	"net/http"
	"time"

	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/logger"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUA        = "ejournal-gradesync"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	maxRetryWait     = 30 * time.Second
	maxBody          = 1 << 20
)

// Options configures the Client
type Options struct {
	UserAgent string
	// Timeout bounds a single attempt, not the whole retry sequence
	Timeout time.Duration

	// Retry config for transport errors, 429 and 502/503/504
	MaxRetries int
	RetryBase  time.Duration

	// RPS <= 0 disables the limiter
	RPS   float64
	Burst int

	// HTTP overrides the underlying client (tests)
	HTTP *http.Client
}

// Response is a fully read LMS answer
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client sends requests to an LMS with rate limiting and retries
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if o.RPS > 0 {
		burst := o.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}
	hc := o.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		http:    hc,
		opts:    o,
		limiter: lim,
		log:     *logger.Named("ltihttp"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// RequestFunc builds a fresh request for each attempt (signatures and nonces must not be reused)
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Do runs newReq until it yields a 2xx, a non retryable status, or retries run out.
// A non 2xx answer returns both the Response and an error wrapping *StatusError
func (c *Client) Do(ctx context.Context, name string, newReq RequestFunc) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryBase
	b.MaxInterval = maxRetryWait

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, perr.Wrapf(err, codeForCtx(err, perr.ErrorCodeTooManyRequests), "%s: rate limiter", name)
		}

		resp, lat, err := c.once(ctx, newReq)
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeConfig) {
				return nil, err
			}
			if ctx.Err() != nil || attempt >= c.opts.MaxRetries {
				return nil, perr.Wrapf(err, codeForCtx(err, perr.ErrorCodeTransport), "%s: request failed", name)
			}
			back := b.NextBackOff()
			c.log.Warn().Err(err).Str("call", name).Dur("retry_in", back).Int("attempt", attempt).Msg("lms transport error retrying")
			if serr := c.sleep(ctx, back); serr != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeTimeout, "%s: request failed", name)
			}
			continue
		}

		c.log.Debug().
			Str("call", name).
			Str("host", resp.host).
			Int("status", resp.Status).
			Int("attempt", attempt).
			Dur("latency", lat).
			Msg("lms http response")

		switch {
		case resp.Status >= 200 && resp.Status < 300:
			return &resp.Response, nil
		case retryableStatus(resp.Status) && attempt < c.opts.MaxRetries:
			wait := retryAfter(resp.Header, c.now())
			if wait <= 0 {
				wait = b.NextBackOff()
			}
			c.log.Warn().Str("call", name).Int("status", resp.Status).Dur("retry_in", wait).Int("attempt", attempt).Msg("lms transient status retrying")
			if err := c.sleep(ctx, wait); err != nil {
				return &resp.Response, statusErr(name, resp)
			}
			continue
		default:
			return &resp.Response, statusErr(name, resp)
		}
	}
}

type attemptResponse struct {
	Response
	host string
}

func (c *Client) once(ctx context.Context, newReq RequestFunc) (attemptResponse, time.Duration, error) {
	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := newReq(actx)
	if err != nil {
		if _, ok := perr.As(err); ok {
			return attemptResponse{}, 0, err
		}
		return attemptResponse{}, 0, perr.Wrap(err, perr.ErrorCodeConfig, "new request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return attemptResponse{}, c.now().Sub(start), err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	_ = drainAndClose(resp.Body)
	lat := c.now().Sub(start)
	if err != nil {
		return attemptResponse{}, lat, err
	}
	return attemptResponse{
		Response: Response{Status: resp.StatusCode, Header: resp.Header, Body: body},
		host:     req.URL.Host,
	}, lat, nil
}

func statusErr(name string, r attemptResponse) error {
	se := &StatusError{Status: r.Status, Body: snippet(r.Body)}
	code := perr.ErrorCodeUpstream
	switch r.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = perr.ErrorCodeUnauthorized
	case http.StatusTooManyRequests:
		code = perr.ErrorCodeTooManyRequests
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		code = perr.ErrorCodeUnavailable
	}
	return perr.Wrapf(se, code, "%s: lms answered %d", name, r.Status)
}

func codeForCtx(err error, fallback perr.ErrorCode) perr.ErrorCode {
	if stderrs.Is(err, context.DeadlineExceeded) {
		return perr.ErrorCodeTimeout
	}
	return fallback
}
