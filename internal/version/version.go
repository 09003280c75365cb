package version

// Build-time variables (set via ldflags), e.g.
//
//	-X github.com/monorkin/flow-index-monitor/internal/version.Version=1.2.0
var (
	Version = "dev"
	Commit  = ""
)

// GetVersion returns the version, suffixed with the commit when known.
func GetVersion() string {
	if Commit == "" {
		return Version
	}
	return Version + "+" + Commit
}
