package ltihttp

import (
	"context"
	stderrs "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// StatusError carries a non 2xx LMS answer
type StatusError struct {
	Status int
	Body   string
}

// Error interface
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d body %s", e.Status, e.Body)
}

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// StatusOf returns the LMS status carried by err, 0 if none
func StatusOf(err error) int {
	var se *StatusError
	if stderrs.As(err, &se) {
		return se.Status
	}
	return 0
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter reads Retry-After as seconds or an HTTP date
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if sec, err := strconv.Atoi(v); err == nil {
		if sec <= 0 {
			return 0
		}
		return min(time.Duration(sec)*time.Second, maxRetryWait)
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return min(at.Sub(now), maxRetryWait)
	}
	return 0
}

func snippet(b []byte) string {
	const n = 512
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
