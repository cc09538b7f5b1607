package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Set through -ldflags "-X" at release build time; the defaults identify a
// local development build.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo is the version triple reported by the version endpoint and the
// startup log line.
type BuildInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"commit"`
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{Version: Version, Build: Build, GitCommit: GitCommit}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build %s, commit %s)", b.Version, b.Build, b.GitCommit)
}

// LoadVersionFromFile fills in version fields from a .version file next to
// the binary. The file holds "key: value" lines for "version" and "build".
// File values never override values injected through ldflags.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(exe), ".version"))
	if err != nil {
		return
	}
	applyVersionFile(string(data))
}

func applyVersionFile(contents string) {
	for _, line := range strings.Split(contents, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "version":
			if Version == "dev" && val != "" {
				Version = val
			}
		case "build":
			if Build == "unknown" && val != "" {
				Build = val
			}
		}
	}
}
