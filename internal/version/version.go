// Where: internal/version/version.go
// What: Version information retrieval.
// Why: Report the build revision from both the CLI and the Lambda handler logs.
package version

import (
	"fmt"
	"runtime/debug"
)

var readBuildInfo = debug.ReadBuildInfo

// GetVersion returns the module version when the binary was installed from a
// tagged release, otherwise the short VCS revision with a "(dirty)" marker.
// It returns "dev" if neither is available.
func GetVersion() string {
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	var revision string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if revision == "" {
		return "dev"
	}
	if modified {
		return fmt.Sprintf("%s (dirty)", revision)
	}
	return revision
}
