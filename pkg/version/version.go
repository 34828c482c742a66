// Package version holds build information for the sw-proxy binary.
// The variables are set via ldflags, e.g.
//
//	-ldflags "-X github.com/Sternrassler/sw-proxy/pkg/version.Version=v1.2.0"
package version

import "runtime"

// Version is the released version, "dev" for local builds.
var Version = "dev"

// BuildDate is when the binary was built.
var BuildDate = "unknown"

// GitCommit is the commit the binary was built from.
var GitCommit = "unknown"

// String returns the bare version.
func String() string {
	return Version
}

// FullString returns the version with the program name.
func FullString() string {
	if Version == "dev" {
		return "sw-proxy development version"
	}
	return "sw-proxy " + Version
}

// Info returns all version information as a map.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildDate": BuildDate,
		"gitCommit": GitCommit,
		"goVersion": runtime.Version(),
	}
}
