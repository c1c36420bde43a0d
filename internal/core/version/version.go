// Package version reports build information for the grade sync binary
package version

// BuildInfo holds version information about the build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Service is the binary name used in logs, metrics and alerts
const Service = "ejournal-gradesync"

// Info returns the build information. version, commit and date are set with
// -ldflags "-X 'ejournal/internal/core/version.version=v0.1.0' ..."
func Info() BuildInfo {
	return BuildInfo{
		Service: Service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
