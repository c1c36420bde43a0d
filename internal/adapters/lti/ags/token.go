package ags

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ejournal/internal/adapters/lti/ltihttp"
	perr "ejournal/internal/platform/errors"

	"github.com/dgrijalva/jwt-go"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	assertionType  = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionTTL   = 5 * time.Minute
	expirySkew     = 30 * time.Second
	defaultTokenTT = time.Hour
)

type cachedToken struct {
	value   string
	expires time.Time
}

// TokenSource runs the LTI 1.3 client credentials grant with an RS256 client assertion
// and caches tokens per registration until shortly before they expire
type TokenSource struct {
	http *ltihttp.Client
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

// NewTokenSource returns a TokenSource posting through hc
func NewTokenSource(hc *ltihttp.Client) *TokenSource {
	return &TokenSource{http: hc, now: time.Now, cache: map[string]cachedToken{}}
}

// Token returns a cached or freshly issued access token for reg
func (s *TokenSource) Token(ctx context.Context, reg Registration) (string, error) {
	s.mu.Lock()
	if t, ok := s.cache[reg.cacheKey()]; ok && s.now().Add(expirySkew).Before(t.expires) {
		s.mu.Unlock()
		return t.value, nil
	}
	s.mu.Unlock()

	assertion, err := s.assertion(reg)
	if err != nil {
		return "", err
	}
	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_assertion_type": {assertionType},
		"client_assertion":      {assertion},
		"scope":                 {ScoreScope},
	}.Encode()

	resp, err := s.http.Do(ctx, "ags.token", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.TokenURL, strings.NewReader(form))
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeConfig, "ags: bad token url")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeMalformedResponse, "ags: token response is not json")
	}
	if body.AccessToken == "" {
		return "", perr.New(perr.ErrorCodeUnauthorized, "ags: token response has no access_token")
	}
	ttl := defaultTokenTT
	if body.ExpiresIn > 0 {
		ttl = time.Duration(body.ExpiresIn) * time.Second
	}

	s.mu.Lock()
	s.cache[reg.cacheKey()] = cachedToken{value: body.AccessToken, expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return body.AccessToken, nil
}

// Invalidate drops the cached token for reg, used after a 401
func (s *TokenSource) Invalidate(reg Registration) {
	s.mu.Lock()
	delete(s.cache, reg.cacheKey())
	s.mu.Unlock()
}

func (s *TokenSource) assertion(reg Registration) (string, error) {
	if reg.TokenURL == "" || reg.ClientID == "" || reg.PrivateKeyPEM == "" {
		return "", perr.Configf("ags: registration %s/%s is missing token url, client id or key", reg.Issuer, reg.ClientID)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(reg.PrivateKeyPEM))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeConfig, "ags: parse private key")
	}
	aud := reg.Audience
	if aud == "" {
		aud = reg.TokenURL
	}
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.StandardClaims{
		Issuer:    reg.ClientID,
		Subject:   reg.ClientID,
		Audience:  aud,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(assertionTTL).Unix(),
		Id:        uuid.NewString(),
	})
	if reg.KeyID != "" {
		tok.Header["kid"] = reg.KeyID
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeConfig, "ags: sign client assertion")
	}
	return signed, nil
}
