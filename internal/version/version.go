// Package version holds build metadata injected via ldflags:
//
//	-X 'github.com/janekbaraniewski/spendboard/internal/version.Version=...'
//	-X 'github.com/janekbaraniewski/spendboard/internal/version.CommitHash=...'
//	-X 'github.com/janekbaraniewski/spendboard/internal/version.BuildDate=...'
package version

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

func String() string {
	return Version + " (" + CommitHash + ") built " + BuildDate
}

// UserAgent identifies outbound vendor and sync requests.
func UserAgent() string {
	return "spendboard/" + Version
}
