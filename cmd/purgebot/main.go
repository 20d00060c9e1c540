package main

import (
	"os"

	"github.com/aatumaykin/purgebot/internal/version"
)

// Set with -ldflags "-X main.Version=...".
var (
	Version   string
	BuildTime string
	GitCommit string
	GoVersion string
)

func init() {
	version.SetInfo(Version, BuildTime, GitCommit, GoVersion)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
