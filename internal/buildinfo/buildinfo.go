// Package buildinfo exposes version details injected at link time via
// -ldflags "-X fleetroute/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
