// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"net/http"
)

// TokenTransport adds "Authorization: Bearer <token>" to outgoing requests
// that do not already carry an Authorization header.
type TokenTransport struct {
	Token string
	Base  http.RoundTripper
}

// NewTokenTransport wraps base (http.DefaultTransport when nil).
func NewTokenTransport(token string, base http.RoundTripper) *TokenTransport {
	return &TokenTransport{Token: token, Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *TokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Token == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.Token)
	return base.RoundTrip(r)
}

// StreamHTTPClient returns a client for long-lived streams: the same token
// handling as NewClient but no overall timeout.
func StreamHTTPClient(token string) *http.Client {
	return &http.Client{Transport: NewTokenTransport(token, nil)}
}
