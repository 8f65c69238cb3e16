package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version returns the release version of the binaries.
func Version() string {
	return strings.TrimSpace(version)
}

// Product returns the name and version sent in the Server header.
func Product() string {
	return "balkonsolar/" + Version()
}
