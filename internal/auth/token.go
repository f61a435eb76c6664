// Package auth manages the OAuth2 client-credentials token used for every
// reporting API call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenLifetime is assumed when the token endpoint omits expires_in.
// It only drives the refresh deadline; the server decides actual validity.
const DefaultTokenLifetime = 7199 * time.Second

// Error reports a failed token request. Status and Body are set when the
// endpoint answered with a non-2xx response.
type Error struct {
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token request failed [%d]: %s", e.Status, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("token request failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TokenManager caches one access token and refreshes it once the current
// instant reaches expiry minus the refresh margin. It is meant for a single
// sequential caller and does no locking.
type TokenManager struct {
	creds      clientcredentials.Config
	margin     time.Duration
	httpClient *http.Client
	now        func() time.Time
	log        *log.Entry

	accessToken string
	expiresAt   time.Time
}

// Option customizes a TokenManager.
type Option func(*TokenManager)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *TokenManager) { m.httpClient = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

func WithLogger(entry *log.Entry) Option {
	return func(m *TokenManager) { m.log = entry }
}

// NewTokenManager creates a manager for the given token endpoint. The
// credentials are sent in the form body, as the OpsRamp endpoint expects.
func NewTokenManager(tokenURL, clientID, clientSecret string, margin time.Duration, opts ...Option) *TokenManager {
	m := &TokenManager{
		creds: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		margin:     margin,
		httpClient: http.DefaultClient,
		now:        time.Now,
		log:        log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid access token, fetching a new one when none is
// cached or the cached one is within the refresh margin of expiry.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if m.accessToken == "" || !m.now().Before(m.expiresAt.Add(-m.margin)) {
		if err := m.refresh(ctx); err != nil {
			return "", err
		}
	}
	return m.accessToken, nil
}

// ExpiresAt returns the expiry of the cached token, zero if none.
func (m *TokenManager) ExpiresAt() time.Time {
	return m.expiresAt
}

func (m *TokenManager) refresh(ctx context.Context) error {
	m.log.Info("requesting new OAuth token")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := m.creds.Token(ctx)
	if err != nil {
		authErr := &Error{Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if re.Response != nil {
				authErr.Status = re.Response.StatusCode
			}
			authErr.Body = string(re.Body)
		}
		m.log.WithError(err).WithField("status", authErr.Status).Error("token request failed")
		return authErr
	}

	lifetime := DefaultTokenLifetime
	if secs, ok := expiresIn(tok); ok && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	m.accessToken = tok.AccessToken
	m.expiresAt = m.now().Add(lifetime)
	m.log.WithFields(log.Fields{
		"expires_in": int64(lifetime / time.Second),
		"expires_at": m.expiresAt.UTC().Format(time.RFC3339),
	}).Info("token acquired")
	return nil
}

func expiresIn(tok *oauth2.Token) (int64, bool) {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn, true
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Static is a token source that never touches the network. Dry runs use it.
type Static string

func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}
