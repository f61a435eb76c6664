// Package analysis talks to the OpsRamp reporting API: it creates and
// deletes analyses. It never retries; retry policy belongs to the caller.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/nghyane/opsramp-reports/internal/config"
	"github.com/nghyane/opsramp-reports/internal/json"
	"github.com/nghyane/opsramp-reports/internal/schedule"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 64 << 10

// Record identifies an analysis created on the server.
type Record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIError is returned for any non-2xx response of the reporting API.
type APIError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed [%d]: %s", e.Method, e.URL, e.Status, strings.TrimSpace(e.Body))
}

// Client issues authenticated requests for one tenant.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	log        *log.Entry
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(entry *log.Entry) Option {
	return func(cl *Client) { cl.log = entry }
}

func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		log:        log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create posts a new analysis covering w and returns the server record.
func (c *Client) Create(ctx context.Context, token, name string, w schedule.Window) (Record, error) {
	body, err := json.Marshal(BuildPayload(c.cfg, name, w))
	if err != nil {
		return Record{}, fmt.Errorf("encode analysis payload: %w", err)
	}

	url := c.cfg.AnalysesURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Record{}, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, respBody, err := c.do(req, token)
	if err != nil {
		return Record{}, err
	}

	parsed := gjson.ParseBytes(respBody)
	rec := Record{
		ID:   parsed.Get("id").String(),
		Name: parsed.Get("name").String(),
	}
	if rec.ID == "" {
		return Record{}, &APIError{Method: http.MethodPost, URL: url, Status: status, Body: "response has no analysis id: " + string(respBody)}
	}
	if rec.Name == "" {
		rec.Name = name
	}
	c.log.WithFields(log.Fields{"id": rec.ID, "name": rec.Name}).Debug("created analysis")
	return rec, nil
}

// Delete removes the analysis with the given id and returns the HTTP status.
func (c *Client) Delete(ctx context.Context, token, id string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.AnalysisURL(id), nil)
	if err != nil {
		return 0, fmt.Errorf("build delete request: %w", err)
	}

	status, _, err := c.do(req, token)
	if err != nil {
		return status, err
	}
	c.log.WithFields(log.Fields{"id": id, "status": status}).Debug("deleted analysis")
	return status, nil
}

func (c *Client) do(req *http.Request, token string) (int, []byte, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			c.log.WithError(errClose).Debug("failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, nil, &APIError{
			Method: req.Method,
			URL:    req.URL.String(),
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s response: %w", req.Method, err)
	}
	return resp.StatusCode, body, nil
}
