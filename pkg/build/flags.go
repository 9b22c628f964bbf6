// SPDX-License-Identifier: MIT
package build

import (
	"errors"
	"fmt"
	"strings"
)

// ldFlags holds build-time information injected during compilation, e.g.
//
//	go build -ldflags "-X ledspectrum/pkg/build.buildVersion=0.2.0 \
//	    -X ledspectrum/pkg/build.buildCommit=$(git rev-parse --short HEAD)"
type ldFlags struct {
	Name        string // Application name
	Description string // One-line description shown in --help
	Time        string // Build timestamp
	Commit      string // Git commit hash
	Version     string // Semantic version
}

// Populated by -ldflags. Fields left empty keep the development defaults.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "ledspectrum",
		Description: "Real-time audio spectrum on a serial LED matrix",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build information. Every
// variable that was set is applied; the returned error lists the ones that
// were missing so release builds can be checked, while development builds
// keep running with defaults.
func Initialize() error {
	var missing []string

	set := func(dst *string, src, flag string) {
		if src == "" {
			missing = append(missing, flag)
			return
		}
		*dst = src
	}

	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	if len(missing) > 0 {
		return errors.New(strings.Join(missing, ", ") + " not set")
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String returns "name version (commit, time)".
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (%s, %s)", f.Name, f.Version, f.Commit, f.Time)
}
