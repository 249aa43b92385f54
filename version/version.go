package version

import (
	"fmt"
	"strings"
)

// These variables are populated at build time using ldflags.
// Example: go build -ldflags "-X 'github.com/user00265/hamtools/version.GitCommit=f80cf83' -X 'github.com/user00265/hamtools/version.BuildVersion=1.0.0'" ./cmd/hamtools
var (
	// ProjectName is the name of the project.
	ProjectName = "hamtools"

	// ProjectGitHubURL is the GitHub repository URL.
	ProjectGitHubURL = "https://github.com/user00265/hamtools"

	// BuildVersion is the semantic version of the build, "unknown" if unset.
	BuildVersion = "unknown"

	// GitCommit is the short Git commit hash, "unknown" if unset.
	GitCommit = "unknown"
)

// ProjectVersion is "X.Y.Z+COMMIT" when both build variables are set,
// otherwise "unknown".
var ProjectVersion = "unknown"

// UserAgent is the User-Agent sent with country file downloads.
var UserAgent string

// init runs after ldflags have been applied to the variables above.
func init() {
	ProjectVersion = projectVersion(BuildVersion, GitCommit)
	UserAgent = fmt.Sprintf("%s/%s (+%s)", ProjectName, ProjectVersion, ProjectGitHubURL)
}

func projectVersion(build, commit string) string {
	if build == "unknown" || commit == "unknown" {
		return "unknown"
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s+%s", strings.TrimPrefix(build, "v"), commit)
}
