// SPDX-License-Identifier: MIT
//
// Package build manages build metadata embedded into the binary at compile
// time via linker flags: application name, build timestamp, Git commit and
// semantic version. Used for logging and the --version output.
package build

type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Package-level variables populated by -ldflags during compilation.
// Development builds that skip the flags fall back to the defaults below.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	buildInfo = &Info{
		Name:    "specmon",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies any ldflags-provided values over the defaults. Must be
// called early in program startup, before GetInfo.
func Initialize() error {
	if buildName != "" {
		buildInfo.Name = buildName
	}
	if buildTime != "" {
		buildInfo.Time = buildTime
	}
	if buildCommit != "" {
		buildInfo.Commit = buildCommit
	}
	if buildVersion != "" {
		buildInfo.Version = buildVersion
	}
	return nil
}

// GetInfo returns the current build information. Initialize must have been
// called first.
func GetInfo() *Info {
	return buildInfo
}
