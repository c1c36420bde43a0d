// Package ags posts scores through LTI 1.3 Assignment and Grade Services
package ags

import (
	"context"
	"strings"
)

// Media types and scopes used on the wire
const (
	ScoreContentType = "application/vnd.ims.lis.v1.score+json"
	ScoreScope       = "https://purl.imsglobal.org/spec/lti-ags/scope/score"
)

// ServiceDescriptor identifies one AGS line item on one platform registration
type ServiceDescriptor struct {
	Issuer   string `json:"issuer"`
	ClientID string `json:"client_id"`
	LineItem string `json:"lineitem"`
}

// Key groups recipients that share a line item endpoint
func (d ServiceDescriptor) Key() string {
	return strings.Join([]string{d.Issuer, d.ClientID, d.LineItem}, "|")
}

// Registration is the tool's key material on a platform
type Registration struct {
	Issuer        string
	ClientID      string
	TokenURL      string
	Audience      string // empty means TokenURL
	KeyID         string
	PrivateKeyPEM string
}

func (r Registration) cacheKey() string { return r.Issuer + "|" + r.ClientID }

// Registry resolves the platform registration for an issuer and client id
type Registry interface {
	Registration(ctx context.Context, issuer, clientID string) (Registration, error)
}

// Tokens issues bearer tokens for a registration
type Tokens interface {
	Token(ctx context.Context, reg Registration) (string, error)
	Invalidate(reg Registration)
}
