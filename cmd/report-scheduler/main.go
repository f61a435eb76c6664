package main

import (
	"github.com/nghyane/opsramp-reports/internal/buildinfo"
	"github.com/nghyane/opsramp-reports/internal/cli"
	"github.com/nghyane/opsramp-reports/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	cli.Execute()
}
