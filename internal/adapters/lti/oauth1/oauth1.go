// Package oauth1 signs LTI 1.1 service requests with one-legged OAuth 1.0a
// (HMAC-SHA1 plus oauth_body_hash)
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	perr "ejournal/internal/platform/errors"

	"github.com/google/uuid"
)

// Signer holds the consumer key pair shared with the LMS
type Signer struct {
	Key    string
	Secret string

	// seams for tests
	Now   func() time.Time
	Nonce func() string
}

// New returns a Signer for key/secret
func New(key, secret string) *Signer {
	return &Signer{Key: key, Secret: secret}
}

// Sign sets the Authorization header on req for body
func (s *Signer) Sign(req *http.Request, body []byte) error {
	if s == nil || s.Key == "" || s.Secret == "" {
		return perr.Configf("oauth1: consumer key and secret are required")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	nonce := func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
	if s.Nonce != nil {
		nonce = s.Nonce
	}

	sum := sha1.Sum(body)
	oauth := map[string]string{
		"oauth_body_hash":        base64.StdEncoding.EncodeToString(sum[:]),
		"oauth_consumer_key":     s.Key,
		"oauth_nonce":            nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(now().Unix(), 10),
		"oauth_version":          "1.0",
	}

	base := BaseString(req.Method, req.URL, oauth)
	mac := hmac.New(sha1.New, []byte(Encode(s.Secret)+"&"))
	mac.Write([]byte(base))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", header(oauth))
	return nil
}

// BaseString is the signature base string: METHOD&url&params, each percent encoded
func BaseString(method string, u *url.URL, oauth map[string]string) string {
	type kv struct{ k, v string }
	var params []kv
	for k, vs := range u.Query() {
		for _, v := range vs {
			params = append(params, kv{Encode(k), Encode(v)})
		}
	}
	for k, v := range oauth {
		if k == "oauth_signature" {
			continue
		}
		params = append(params, kv{Encode(k), Encode(v)})
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].k != params[j].k {
			return params[i].k < params[j].k
		}
		return params[i].v < params[j].v
	})

	pairs := make([]string, len(params))
	for i, p := range params {
		pairs[i] = p.k + "=" + p.v
	}

	return strings.ToUpper(method) + "&" + Encode(baseURL(u)) + "&" + Encode(strings.Join(pairs, "&"))
}

// baseURL is scheme://host[:non-default-port]/path, lowercased scheme and host
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if p := u.Port(); p != "" && !(scheme == "http" && p == "80") && !(scheme == "https" && p == "443") {
		host += ":" + p
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

func header(oauth map[string]string) string {
	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`OAuth realm=""`)
	for _, k := range keys {
		b.WriteString(", ")
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(Encode(oauth[k]))
		b.WriteString(`"`)
	}
	return b.String()
}

// Encode percent encodes s per RFC 3986 (only ALPHA DIGIT - . _ ~ pass through)
func Encode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}
