package version

import (
	"runtime/debug"
	"time"
)

// These variables can be overridden at build time with ldflags
var (
	Version   string // -X github.com/trufnetwork/waterjudge/cmd/version.Version=...
	Commit    string // -X github.com/trufnetwork/waterjudge/cmd/version.Commit=...
	BuildTime string // -X github.com/trufnetwork/waterjudge/cmd/version.BuildTime=...
)

// getVersion returns the release version if set, otherwise the module version
// recorded in the binary's build info.
func getVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// getCommit returns the commit hash in short form (9 chars) for readability.
func getCommit() string {
	commit := Commit
	if commit == "" {
		commit = buildSetting("vcs.revision")
	}

	const shortHashLength = 9
	if len(commit) > shortHashLength {
		return commit[:shortHashLength]
	}
	return commit
}

// getBuildTime returns the ldflags build time if set, otherwise the VCS
// commit time from build info.
func getBuildTime() time.Time {
	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			return t
		}
	}
	if raw := buildSetting("vcs.time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// getBuildTimeDisplay returns a formatted build time with context about whether it's commit or build time
func getBuildTimeDisplay() string {
	buildTime := getBuildTime()
	if buildTime.IsZero() {
		return "unknown"
	}

	// A custom build time means release tooling stamped it: commit time when
	// the workspace was clean, build time when dirty.
	if BuildTime != "" {
		if Version != "" && len(Version) > 5 && Version[len(Version)-5:] == "dirty" {
			return buildTime.Format(time.RFC3339) + " (build time)"
		}
		return buildTime.Format(time.RFC3339) + " (commit time)"
	}

	return buildTime.Format(time.RFC3339) + " (commit time)"
}

func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
