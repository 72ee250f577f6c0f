// Package identity reports who this slidered instance is.
package identity

import (
	"os"
	"runtime/debug"
)

// DefaultVersion is reported when the binary carries no version stamp.
const DefaultVersion = "0.1.0-dev"

// Version is set at build time with -ldflags "-X .../identity.Version=...".
var Version = ""

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "slidered"
	}
	return h
}

// GetVersion returns the build version: the linker stamp if present, then
// the module version from the build info, then DefaultVersion.
func GetVersion() string {
	if Version != "" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return DefaultVersion
}
