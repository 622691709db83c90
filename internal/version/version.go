// Package version provides build-time metadata for chatlimit.
// The variables are populated via -ldflags; when they are not, the module
// version recorded by the Go toolchain is used instead.
package version

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

var (
	// Version is the semantic version or git commit hash (e.g., "v1.0.0" or "a1b2c3d").
	// Set via: -ldflags "-X chatlimit/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the ISO 8601 UTC timestamp when the binary was built.
	// Set via: -ldflags "-X chatlimit/internal/version.BuildDate=..."
	BuildDate = "unknown"

	// GitCommit is the git commit SHA of the source code.
	// Set via: -ldflags "-X chatlimit/internal/version.GitCommit=..."
	GitCommit = "unknown"
)

// Info holds build metadata and per-process identity.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns build metadata and runtime information.
// Instance ID and hostname are computed once on first call and cached.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    resolveVersion(),
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			GoVersion:  runtime.Version(),
			InstanceID: uuid.New().String(),
			Hostname:   getHostname(),
		}
	})
	return info
}

// resolveVersion prefers the ldflags value, then the main module version.
func resolveVersion() string {
	if Version != "unknown" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return Version
}

// getHostname returns the system hostname, fallback to "unknown" on error.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// LogAttrs returns the fields attached to every log record.
func (i Info) LogAttrs() []any {
	return []any{
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
		slog.String("instance_id", i.InstanceID),
	}
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("chatlimit version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}
