// Package buildinfo exposes version metadata stamped at build time.
package buildinfo

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// UserAgent is sent with every request to the reporting API.
func UserAgent() string {
	return "report-scheduler/" + Version
}
