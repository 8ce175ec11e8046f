package buildinfo

// Set at link time:
//
//	-X 'github.com/oss377/maneBot/core/buildinfo.Version=v0.4.0'
//	-X 'github.com/oss377/maneBot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/oss377/maneBot/core/buildinfo.Date=2026-01-30T12:00:00Z'
var (
	// Version reports the release tag of the binary.
	Version = "dev"
	// Commit reports the source commit of the binary.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// Summary returns a short "version (commit)" string for logs and the CLI.
func Summary() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
