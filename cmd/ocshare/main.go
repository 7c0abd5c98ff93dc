// Package main is the ocshare command line client for OCS share APIs.
package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/Azelphur/ownCloud-share-tools/internal/cli"
	"github.com/Azelphur/ownCloud-share-tools/internal/config"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "ocshare: failed to load .env:", err)
		os.Exit(cli.ExitFailure)
	}
	os.Exit(cli.Main(fmt.Sprintf("%s (built %s)", cmp.Or(version, "dev"), cmp.Or(buildDate, "N/A"))))
}
