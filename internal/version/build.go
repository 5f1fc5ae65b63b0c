// Package version reports the release metadata of the running binary.
package version

import (
	"fmt"
	"runtime"

	"aqstn"
)

const valueNotProvided = "[not provided]"

// Set with -ldflags "-X aqstn/internal/version.gitCommit=..." at build time.
var (
	version      = aqstn.Version
	gitCommit    = valueNotProvided
	gitTreeState = valueNotProvided
	buildDate    = valueNotProvided
	platform     = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)

// Info describes the build of this node.
type Info struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Author       string `json:"author"`
	Description  string `json:"description"`
	GitCommit    string `json:"gitCommit"`
	GitTreeState string `json:"gitTreeState"`
	BuildDate    string `json:"buildDate"`
	GoVersion    string `json:"goVersion"`
	Compiler     string `json:"compiler"`
	Platform     string `json:"platform"`
}

// FromBuild returns the build metadata injected through ldflags.
func FromBuild() Info {
	return Info{
		Name:         aqstn.Name,
		Version:      version,
		Author:       aqstn.Author,
		Description:  aqstn.Description,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     platform,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (%s)", aqstn.ShortName, i.Version, i.Author)
}
