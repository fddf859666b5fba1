// Package version reports which build of the server is running.
package version

import "runtime/debug"

// Version is stamped at build time via -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = ""

// String returns the stamped version, falling back to the module version
// recorded in the build info, then to "dev" for plain source builds.
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}
