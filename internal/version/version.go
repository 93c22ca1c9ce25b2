// Package version reports build metadata. Release builds set the variables
// with -ldflags "-X"; otherwise VCS stamps from the Go toolchain are used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	BuildID   = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
	Modified  bool   `json:"modified"`
}

var (
	once sync.Once
	info Info
)

// Get returns version and build information.
func Get() Info {
	once.Do(func() {
		info = fromBuildInfo(debug.ReadBuildInfo())
	})
	return info
}

func fromBuildInfo(bi *debug.BuildInfo, ok bool) Info {
	i := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if !ok || bi == nil {
		return i
	}

	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "unknown" {
				i.GitCommit = s.Value
				if len(i.GitCommit) > 12 {
					i.GitCommit = i.GitCommit[:12]
				}
			}
		case "vcs.time":
			if i.BuildDate == "unknown" {
				i.BuildDate = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
	return i
}

// String returns the application version string.
func String() string {
	return Get().Version
}
