package core

// Build metadata, injected with
//
//	go build -ldflags "-X go_kunquant/core.Version=$(git describe --tags --always)"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo returns e.g. "v0.3.0 (built 2026-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}
