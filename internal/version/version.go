// Package version holds the build version of noiseprop.
package version

// Overridden at build time:
// go build -ldflags "-X noiseprop/internal/version.Version=1.0.0 -X noiseprop/internal/version.Commit=abc123"
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the version with the short commit when known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns the version, commit and build date on separate lines.
func Full() string {
	return "noiseprop " + Version + "\n" +
		"commit: " + Commit + "\n" +
		"built:  " + BuildDate
}
