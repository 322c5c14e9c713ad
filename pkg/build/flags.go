// SPDX-License-Identifier: MIT
//
// Package build carries metadata embedded at link time:
//
//	go build -ldflags "-X dronewatch/pkg/build.buildName=dronewatch \
//	    -X dronewatch/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run with the defaults below.
package build

import (
	"errors"
	"fmt"
)

const (
	DefaultName        = "dronewatch"
	DefaultDescription = "Acoustic drone detector for a single microphone"
)

// Flags is the build information of the running binary.
type Flags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders a one-line version banner.
func (f *Flags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *Flags {
	return &Flags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags values into the build information. Every
// missing flag is reported; the values that are present are still applied
// so a partial build keeps what it has.
func Initialize() error {
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}
	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")
	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Flags {
	return buildFlags
}
