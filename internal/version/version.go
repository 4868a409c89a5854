// Package version provides the version of the AnyList Daemon.
package version

import (
	"fmt"
	"runtime/debug"
)

// The version components can be overridden at link time, e.g.
// -ldflags "-X github.com/mwopitz/anylist-daemon/internal/version.Patch=1".
var (
	Major = "0"
	Minor = "3"
	Patch = "0"
)

// Semantic returns the semantic version of the AnyList Daemon.
func Semantic() string {
	return fmt.Sprintf("%s.%s.%s", Major, Minor, Patch)
}

// Full returns the semantic version followed by the VCS revision the binary
// was built from, if known.
func Full() string {
	v := Semantic()
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	return v + revision(info.Settings)
}

func revision(settings []debug.BuildSetting) string {
	var rev string
	var dirty bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return ""
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return " (" + rev + ")"
}
