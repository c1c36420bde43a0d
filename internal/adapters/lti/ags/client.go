package ags

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"ejournal/internal/adapters/lti/ltihttp"
	perr "ejournal/internal/platform/errors"

	json "github.com/goccy/go-json"
)

// Client posts score objects to AGS line items
type Client struct {
	registry Registry
	tokens   Tokens
	http     *ltihttp.Client
}

// NewClient wires a Client from its collaborators
func NewClient(registry Registry, tokens Tokens, hc *ltihttp.Client) *Client {
	return &Client{registry: registry, tokens: tokens, http: hc}
}

// PostScore sends payload to the scores endpoint of d's line item.
// A 401 drops the cached token and retries once with a fresh one
func (c *Client) PostScore(ctx context.Context, d ServiceDescriptor, payload map[string]any) error {
	reg, err := c.registry.Registration(ctx, d.Issuer, d.ClientID)
	if err != nil {
		return perr.WithOp(err, "ags.registration")
	}
	endpoint, err := ScoresURL(d.LineItem)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "ags: encode score")
	}

	for attempt := 0; ; attempt++ {
		tok, err := c.tokens.Token(ctx, reg)
		if err != nil {
			return perr.WithOp(err, "ags.token")
		}
		_, err = c.http.Do(ctx, "ags.score", func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeConfig, "ags: bad scores url")
			}
			req.Header.Set("Content-Type", ScoreContentType)
			req.Header.Set("Authorization", "Bearer "+tok)
			return req, nil
		})
		if err != nil && ltihttp.StatusOf(err) == http.StatusUnauthorized && attempt == 0 {
			c.tokens.Invalidate(reg)
			continue
		}
		return err
	}
}

// ScoresURL appends /scores to the line item path, keeping its query string
func ScoresURL(lineItem string) (string, error) {
	u, err := url.Parse(lineItem)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", perr.Newf(perr.ErrorCodeConfig, "ags: bad line item url %q", lineItem)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/scores"
	if u.RawPath != "" {
		u.RawPath = strings.TrimSuffix(u.RawPath, "/") + "/scores"
	}
	return u.String(), nil
}
