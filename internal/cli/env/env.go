// Package env looks up the REPORT_SCHEDULER_* overrides with type conversion.
package env

import (
	"os"
	"strconv"
	"strings"
)

// Prefix namespaces every override variable.
const Prefix = "REPORT_SCHEDULER_"

// Key returns the full variable name for an override.
func Key(name string) string {
	return Prefix + name
}

// LookupEnv searches for environment variables by the given keys in order.
// It returns the first non-empty trimmed value found and true, or empty string
// and false if no matching non-empty variable is found.
func LookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// LookupEnvInt is LookupEnv followed by strconv.Atoi. Unparseable values
// are reported as not found.
func LookupEnvInt(keys ...string) (int, bool) {
	if value, ok := LookupEnv(keys...); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n, true
		}
	}
	return 0, false
}

// LookupEnvBool interprets "true", "1", "yes" and "on" (case-insensitive)
// as true and anything else as false.
func LookupEnvBool(keys ...string) (bool, bool) {
	if value, ok := LookupEnv(keys...); ok {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true, true
		default:
			return false, true
		}
	}
	return false, false
}
