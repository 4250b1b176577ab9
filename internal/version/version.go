// Package version holds the build identity of codescope. It is stamped into
// report metadata, the SARIF driver and the HTTP health endpoint.
package version

import "runtime"

// Name is the tool name used in reports and SARIF output.
const Name = "codescope"

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X codescope/internal/version.Version=1.0.0 -X codescope/internal/version.Commit=abc123"
var (
	// Version is the semantic version of codescope
	Version = "0.4.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns the version with the short commit when one is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return Name + " version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}

// Build is the machine-readable form of Full.
type Build struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Current returns the build identity.
func Current() Build {
	return Build{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}
