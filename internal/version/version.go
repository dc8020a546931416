package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the client's released version.
// Override at build time:
//
//	go build -ldflags "-X github.com/hrygo/supervaani/internal/version.Version=0.3.0"
var Version = "0.1.0"

// DevVersion is reported in dev mode.
var DevVersion = Version + "-dev"

// GitCommit is set via ldflags: -X github.com/hrygo/supervaani/internal/version.GitCommit=$(git rev-parse HEAD)
var GitCommit = "unknown"

func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return DevVersion
	}
	return Version
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
// Both are given without the leading "v".
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare("v"+version, "v"+target) > -1
}

// IsValid reports whether version is a semantic version, without the leading "v".
func IsValid(version string) bool {
	return semver.IsValid("v" + version)
}

// String returns the version with the short commit hash, if known.
func String() string {
	v := Version
	if GitCommit != "" && GitCommit != "unknown" {
		short := GitCommit
		if len(short) > 8 {
			short = short[:8]
		}
		v = fmt.Sprintf("%s-%s", v, short)
	}
	return v
}

// UserAgent is sent with every backend request.
func UserAgent() string {
	return "supervaani-client/" + strings.TrimPrefix(String(), "v")
}
