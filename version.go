package mailer

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// Build metadata, overridden with -ldflags "-X github.com/lattiq/fluentmailer.Version=v1.2.3".
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the build metadata. The commit falls back to the VCS
// revision recorded by the Go toolchain.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && len(s.Value) >= 12 {
				info.GitCommit = s.Value[:12]
			}
		case "vcs.modified":
			if s.Value == "true" && !strings.HasSuffix(info.GitCommit, "-dirty") {
				info.GitCommit += "-dirty"
			}
		}
	}
	return info
}

// String formats the build as "fluentmailer/<version>", adding the commit
// for development builds.
func (v VersionInfo) String() string {
	s := "fluentmailer/" + v.Version
	if v.Version == "dev" && v.GitCommit != "" && v.GitCommit != "unknown" {
		s += "+" + v.GitCommit
	}
	return s
}

// mailerHeader is the X-Mailer value stamped on every message.
func mailerHeader() string {
	return GetVersionInfo().String()
}
