// Package config loads and validates the per-client scheduler configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied to every field the configuration file leaves out.
const (
	DefaultAppID              = "PERFORMANCE-UTILIZATION"
	DefaultFilterCriteria     = `state = "active" AND monitorable = "true"`
	DefaultReportNamePrefix   = "hourly-perf-report"
	DefaultDisplayMode        = "Consolidated List"
	DefaultQueryConfig        = "summary"
	DefaultRefreshMarginSecs  = 300
	DefaultIntervalHours      = 1
	DefaultReportsPerDay      = 24
	MaxReportsPerDay          = 48
	DefaultBurstDelaySeconds  = 2
	DefaultHTTPTimeoutSeconds = 60
	DefaultRetryDelaySeconds  = 2
	DefaultLogLevel           = "INFO"
	DefaultMetric             = "system_cpu_utilization"
	DefaultMethod             = "max"
	DefaultReportFormat       = "xlsx"
)

// LogLevels lists the accepted values of log_level and --log-level.
var LogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

// Config is the configuration of one client run. It is loaded once at
// startup and treated as read-only afterwards.
type Config struct {
	// ClientName tags every log line of the run. Defaults to TenantID.
	ClientName string `yaml:"client_name" json:"client_name"`

	// BaseURL is the OpsRamp API root, without trailing slash.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// TenantID scopes every reporting call.
	TenantID string `yaml:"tenant_id" json:"tenant_id"`

	Auth     AuthConfig     `yaml:"auth" json:"auth"`
	Report   ReportConfig   `yaml:"report" json:"report"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`

	// SSLVerify enables certificate verification. Gateways commonly serve
	// self-signed certificates, so it is off by default.
	SSLVerify bool `yaml:"ssl_verify" json:"ssl_verify"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// LogFile, when set, receives a copy of every log line (rotated).
	LogFile string `yaml:"log_file,omitempty" json:"log_file,omitempty"`
}

// AuthConfig holds the OAuth2 client-credentials settings.
type AuthConfig struct {
	ClientID                  string `yaml:"client_id" json:"client_id"`
	ClientSecret              string `yaml:"client_secret" json:"client_secret"`
	TokenRefreshMarginSeconds int    `yaml:"token_refresh_margin_seconds" json:"token_refresh_margin_seconds"`
}

// ReportConfig holds the analysis creation parameters.
type ReportConfig struct {
	AppID            string   `yaml:"app_id" json:"app_id"`
	Metrics          []string `yaml:"metrics" json:"metrics"`
	Methods          []string `yaml:"methods" json:"methods"`
	FilterCriteria   string   `yaml:"filter_criteria" json:"filter_criteria"`
	ReportFormat     []string `yaml:"report_format" json:"report_format"`
	ReportNamePrefix string   `yaml:"report_name_prefix" json:"report_name_prefix"`
	DisplayMode      string   `yaml:"display_mode" json:"display_mode"`
	QueryConfig      string   `yaml:"query_config" json:"query_config"`
}

// ScheduleConfig controls how many analyses a cycle creates and when.
type ScheduleConfig struct {
	IntervalHours      int  `yaml:"interval_hours" json:"interval_hours"`
	TotalReportsPerDay int  `yaml:"total_reports_per_day" json:"total_reports_per_day"`
	CleanupAfterAll    bool `yaml:"cleanup_after_all" json:"cleanup_after_all"`
	DailyStartHourUTC  int  `yaml:"daily_start_hour_utc" json:"daily_start_hour_utc"`
	BurstDelaySeconds  int  `yaml:"burst_delay_seconds" json:"burst_delay_seconds"`
}

// HTTPConfig tunes the outbound HTTP calls.
type HTTPConfig struct {
	// TimeoutSeconds bounds every request. Zero disables the timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// MaxRetries is the number of extra attempts for transient failures.
	// Zero keeps the single-attempt behaviour.
	MaxRetries        int `yaml:"max_retries" json:"max_retries"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds" json:"retry_delay_seconds"`
}

// NewDefaultConfig returns a Config with every optional field set to its default.
func NewDefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenRefreshMarginSeconds: DefaultRefreshMarginSecs,
		},
		Report: ReportConfig{
			AppID:            DefaultAppID,
			Metrics:          []string{DefaultMetric},
			Methods:          []string{DefaultMethod},
			FilterCriteria:   DefaultFilterCriteria,
			ReportFormat:     []string{DefaultReportFormat},
			ReportNamePrefix: DefaultReportNamePrefix,
			DisplayMode:      DefaultDisplayMode,
			QueryConfig:      DefaultQueryConfig,
		},
		Schedule: ScheduleConfig{
			IntervalHours:      DefaultIntervalHours,
			TotalReportsPerDay: DefaultReportsPerDay,
			CleanupAfterAll:    true,
			DailyStartHourUTC:  0,
			BurstDelaySeconds:  DefaultBurstDelaySeconds,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:    DefaultHTTPTimeoutSeconds,
			MaxRetries:        0,
			RetryDelaySeconds: DefaultRetryDelaySeconds,
		},
		SSLVerify: false,
		LogLevel:  DefaultLogLevel,
	}
}

func (c *Config) normalize() {
	c.ClientName = strings.TrimSpace(c.ClientName)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.TenantID = strings.TrimSpace(c.TenantID)
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "WARN" {
		c.LogLevel = "WARNING"
	}
	if c.ClientName == "" {
		c.ClientName = c.TenantID
	}
}

// Validate checks required fields and value ranges. The returned error is
// always a *Error naming the offending field.
func (c *Config) Validate() error {
	c.normalize()

	required := []struct {
		field string
		value string
	}{
		{"base_url", c.BaseURL},
		{"tenant_id", c.TenantID},
		{"auth.client_id", c.Auth.ClientID},
		{"auth.client_secret", c.Auth.ClientSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &Error{Field: r.field, Message: "is required"}
		}
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{Field: "base_url", Message: fmt.Sprintf("must be an http(s) URL, got %q", c.BaseURL)}
	}

	if c.Auth.TokenRefreshMarginSeconds < 0 {
		return &Error{Field: "auth.token_refresh_margin_seconds", Message: "must be >= 0"}
	}

	if len(c.Report.Metrics) == 0 {
		return &Error{Field: "report.metrics", Message: "must list at least one metric"}
	}
	if len(c.Report.Methods) == 0 {
		return &Error{Field: "report.methods", Message: "must list at least one method"}
	}
	if len(c.Report.ReportFormat) == 0 {
		return &Error{Field: "report.report_format", Message: "must list at least one format"}
	}
	if strings.TrimSpace(c.Report.ReportNamePrefix) == "" {
		return &Error{Field: "report.report_name_prefix", Message: "is required"}
	}

	s := c.Schedule
	if s.IntervalHours < 1 {
		return &Error{Field: "schedule.interval_hours", Message: "must be >= 1"}
	}
	if s.TotalReportsPerDay < 1 || s.TotalReportsPerDay > MaxReportsPerDay {
		return &Error{Field: "schedule.total_reports_per_day", Message: fmt.Sprintf("must be between 1 and %d", MaxReportsPerDay)}
	}
	if s.DailyStartHourUTC < 0 || s.DailyStartHourUTC > 23 {
		return &Error{Field: "schedule.daily_start_hour_utc", Message: "must be between 0 and 23"}
	}
	if s.BurstDelaySeconds < 0 {
		return &Error{Field: "schedule.burst_delay_seconds", Message: "must be >= 0"}
	}

	if c.HTTP.TimeoutSeconds < 0 {
		return &Error{Field: "http.timeout_seconds", Message: "must be >= 0"}
	}
	if c.HTTP.MaxRetries < 0 {
		return &Error{Field: "http.max_retries", Message: "must be >= 0"}
	}
	if c.HTTP.RetryDelaySeconds < 0 {
		return &Error{Field: "http.retry_delay_seconds", Message: "must be >= 0"}
	}

	if !IsValidLogLevel(c.LogLevel) {
		return &Error{Field: "log_level", Message: fmt.Sprintf("must be one of %s, got %q", strings.Join(LogLevels, ", "), c.LogLevel)}
	}
	return nil
}

// IsValidLogLevel reports whether level (case-insensitive) is accepted.
func IsValidLogLevel(level string) bool {
	level = strings.ToUpper(strings.TrimSpace(level))
	for _, l := range LogLevels {
		if l == level {
			return true
		}
	}
	return false
}

// TokenURL is the tenant OAuth token endpoint.
func (c *Config) TokenURL() string {
	return c.BaseURL + "/tenancy/auth/oauth/token"
}

// AnalysesURL is the collection endpoint analyses are created on.
func (c *Config) AnalysesURL() string {
	return c.BaseURL + "/reporting/api/v3/tenants/" + url.PathEscape(c.TenantID) + "/analyses"
}

// AnalysisURL addresses a single analysis.
func (c *Config) AnalysisURL(id string) string {
	return c.AnalysesURL() + "/" + url.PathEscape(id)
}

func (c *Config) RefreshMargin() time.Duration {
	return time.Duration(c.Auth.TokenRefreshMarginSeconds) * time.Second
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalHours) * time.Hour
}

func (c *Config) BurstDelay() time.Duration {
	return time.Duration(c.Schedule.BurstDelaySeconds) * time.Second
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelaySeconds) * time.Second
}
