package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

var envRefPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads, interpolates, normalizes and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		var cfgErr *Error
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the configuration file and applies defaults without
// validating it, so callers can layer overrides before calling Validate.
//
// Files ending in .json may contain comments and trailing commas. Any other
// extension is parsed as YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Path: path, Message: "file not found", Err: err}
		}
		return nil, &Error{Path: path, Message: "read failed", Err: err}
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = hujson.Standardize(data)
		if err != nil {
			return nil, &Error{Path: path, Message: "invalid JSON", Err: err}
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		var cfgErr *Error
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML (or standard JSON) document on top of the defaults.
// ${VAR} references inside string values are replaced by the environment
// value; a reference to an unset variable is an error.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Message: "invalid YAML", Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &Error{Message: "config file must contain a YAML mapping"}
	}
	root := doc.Content[0]

	if err := interpolate(root); err != nil {
		return nil, err
	}

	cfg := NewDefaultConfig()

	var legacy legacyKeys
	if err := root.Decode(&legacy); err != nil {
		return nil, &Error{Message: "invalid value", Err: err}
	}
	legacy.applyTo(cfg)

	// Nested keys win over the legacy flat ones.
	if err := root.Decode(cfg); err != nil {
		return nil, &Error{Message: "invalid value", Err: err}
	}
	cfg.normalize()
	return cfg, nil
}

// interpolate rewrites ${VAR} references in every string value of the tree.
// Mapping keys are left untouched.
func interpolate(n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			if err := interpolate(n.Content[i]); err != nil {
				return err
			}
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, child := range n.Content {
			if err := interpolate(child); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if n.ShortTag() != "!!str" {
			return nil
		}
		whole := envRefPattern.FindString(n.Value) == n.Value
		value, err := ExpandEnv(n.Value)
		if err != nil {
			return err
		}
		if value == n.Value {
			return nil
		}
		n.Value = value
		// Plain scalars and whole-value references take the type of the
		// substituted text, so ${PORT} can fill an int field. Only numbers and
		// booleans are retagged; "null" and other text stays a string.
		if n.Style == 0 || whole {
			if tag := scalarTag(value); tag != "" {
				n.Tag = tag
			}
		}
	}
	return nil
}

// scalarTag returns the YAML tag value resolves to when it is an int, float
// or bool, and "" otherwise.
func scalarTag(value string) string {
	if value == "" || strings.TrimSpace(value) != value || strings.ContainsAny(value, "\n#") {
		return ""
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(value), &doc); err != nil {
		return ""
	}
	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.ScalarNode || doc.Content[0].Style != 0 {
		return ""
	}
	switch tag := doc.Content[0].ShortTag(); tag {
	case "!!int", "!!float", "!!bool":
		return tag
	}
	return ""
}

// ExpandEnv replaces ${VAR} patterns with environment values.
func ExpandEnv(value string) (string, error) {
	var missing string
	out := envRefPattern.ReplaceAllStringFunc(value, func(ref string) string {
		name := envRefPattern.FindStringSubmatch(ref)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return ref
		}
		return v
	})
	if missing != "" {
		return "", &Error{Message: fmt.Sprintf("environment variable %q referenced in config but not set", missing)}
	}
	return out, nil
}

// legacyKeys are the flat top-level keys of the legacy config.json layout.
type legacyKeys struct {
	ClientID                  *string  `yaml:"client_id"`
	ClientSecret              *string  `yaml:"client_secret"`
	TokenRefreshMarginSeconds *int     `yaml:"token_refresh_margin_seconds"`
	AppID                     *string  `yaml:"app_id"`
	Metrics                   []string `yaml:"metrics"`
	Methods                   []string `yaml:"methods"`
	FilterCriteria            *string  `yaml:"filter_criteria"`
	ReportFormat              []string `yaml:"report_format"`
	ReportNamePrefix          *string  `yaml:"report_name_prefix"`
	StartHour                 *int     `yaml:"start_hour"`
}

func (l legacyKeys) applyTo(cfg *Config) {
	if l.ClientID != nil {
		cfg.Auth.ClientID = *l.ClientID
	}
	if l.ClientSecret != nil {
		cfg.Auth.ClientSecret = *l.ClientSecret
	}
	if l.TokenRefreshMarginSeconds != nil {
		cfg.Auth.TokenRefreshMarginSeconds = *l.TokenRefreshMarginSeconds
	}
	if l.AppID != nil {
		cfg.Report.AppID = *l.AppID
	}
	if l.Metrics != nil {
		cfg.Report.Metrics = l.Metrics
	}
	if l.Methods != nil {
		cfg.Report.Methods = l.Methods
	}
	if l.FilterCriteria != nil {
		cfg.Report.FilterCriteria = *l.FilterCriteria
	}
	if l.ReportFormat != nil {
		cfg.Report.ReportFormat = l.ReportFormat
	}
	if l.ReportNamePrefix != nil {
		cfg.Report.ReportNamePrefix = *l.ReportNamePrefix
	}
	if l.StartHour != nil {
		cfg.Schedule.DailyStartHourUTC = *l.StartHour
	}
}
