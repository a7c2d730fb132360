// Package buildinfo exposes the version atlas was built with.
//
// The variables are stamped at link time:
//
//	go build -ldflags "-X github.com/gpmc-lab-ufrgs/atlas/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/gpmc-lab-ufrgs/atlas/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/gpmc-lab-ufrgs/atlas/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/atlas
package buildinfo

import "fmt"

// Build stamp, overridden via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the build stamp as reported by the health endpoint.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the current build stamp.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// String returns the build stamp on one line.
func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s)", i.Version, i.Commit, i.Date)
}

// Template returns the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
