// Package transport builds the HTTP client shared by the token manager and
// the reporting API client.
package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/nghyane/opsramp-reports/internal/buildinfo"
)

// Options configures NewClient.
type Options struct {
	// VerifyTLS enables certificate verification.
	VerifyTLS bool

	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
}

// NewClient returns an *http.Client for the OpsRamp gateway.
func NewClient(opts Options) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.VerifyTLS {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // gateways use self-signed certs
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &userAgentTransport{base: base, userAgent: buildinfo.UserAgent()},
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
