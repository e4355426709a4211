// Package version reports build information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X". Empty values are filled from the module build
// info embedded by the go command.
var (
	Version   = ""
	BuildDate = ""
	GitCommit = ""
)

const unknown = "unknown"

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info holds version information
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	Modified  bool
	GoVersion string
	Platform  string
}

// Get returns version information
func Get() Info {
	info := Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := readBuildInfo(); ok {
		info = info.merge(bi)
	}
	if info.Version == "" {
		info.Version = "devel"
	}
	if info.BuildDate == "" {
		info.BuildDate = unknown
	}
	if info.GitCommit == "" {
		info.GitCommit = unknown
	}
	return info
}

// merge fills the fields ldflags left empty.
func (i Info) merge(bi *debug.BuildInfo) Info {
	if i.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "" {
				i.GitCommit = shortRevision(s.Value)
			}
		case "vcs.time":
			if i.BuildDate == "" {
				i.BuildDate = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
	return i
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("pgreindex version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	commit := i.GitCommit
	if i.Modified {
		commit += " (modified)"
	}
	return fmt.Sprintf(`pgreindex version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s`, i.Version, i.BuildDate, commit, i.Platform, i.GoVersion)
}

// UserAgent is the application_name the tool reports to the server.
func (i Info) UserAgent() string {
	return "pgreindex/" + i.Version
}
