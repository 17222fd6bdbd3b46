// Package version carries build identification set via -ldflags.
package version

var (
	// Version is the semantic version of the chainwatcher binary.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)
