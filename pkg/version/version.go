package version

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// Set at build time with -ldflags "-X github.com/kamikazebr/therapy-records/pkg/version.Version=..."
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
	// GitDirty is "true" when the tree had uncommitted changes
	GitDirty = ""
)

const shortCommitLen = 7

// Info describes the running build of one binary.
type Info struct {
	Name      string
	Version   string
	Commit    string
	BuildTime string
	Dirty     bool
}

// Current returns the build info for the named binary.
func Current(name string) Info {
	return Info{
		Name:      name,
		Version:   Version,
		Commit:    shortCommit(GitCommit),
		BuildTime: BuildTime,
		Dirty:     GitDirty == "true",
	}
}

func shortCommit(commit string) string {
	commit = strings.TrimSpace(commit)
	if commit == "unknown" {
		return ""
	}
	if len(commit) > shortCommitLen {
		return commit[:shortCommitLen]
	}
	return commit
}

// Release reports whether the binary was built from a tagged version.
func (i Info) Release() bool {
	return i.Version != "" && i.Version != "dev"
}

// String renders e.g. "therapy-server v1.2.0 (abc1234-dirty, built 2025-06-15T08:30:00Z)".
// Missing build details are left out.
func (i Info) String() string {
	v := i.Version
	if v == "" {
		v = "dev"
	}

	var details []string
	if i.Commit != "" {
		c := i.Commit
		if i.Dirty {
			c += "-dirty"
		}
		details = append(details, c)
	}
	if i.BuildTime != "" {
		details = append(details, "built "+i.BuildTime)
	}

	if len(details) == 0 {
		return fmt.Sprintf("%s %s", i.Name, v)
	}
	return fmt.Sprintf("%s %s (%s)", i.Name, v, strings.Join(details, ", "))
}

// UserAgent identifies outbound requests, e.g. "therapy-server/v1.2.0 (+abc1234)".
func (i Info) UserAgent() string {
	ua := i.Name + "/" + i.Version
	if i.Commit != "" {
		ua += " (+" + i.Commit + ")"
	}
	return ua
}

// Fields are attached to the startup log line.
func (i Info) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", i.Version),
		zap.String("commit", i.Commit),
		zap.Bool("dirty", i.Dirty),
		zap.String("built", i.BuildTime),
		zap.String("go", runtime.Version()),
	}
}
