// Package version holds build identification, set with -ldflags -X.
package version

var (
	Version = "0.1.0"
	Commit  = "none"
)

// String returns the banner printed at startup.
func String() string {
	if Commit == "none" || Commit == "" {
		return "javaidx v" + Version
	}
	return "javaidx v" + Version + " (" + Commit + ")"
}
