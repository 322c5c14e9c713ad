// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   Flags
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origFlags = *buildFlags

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildFlags = origFlags

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
		wantFlags   Flags
	}{
		{
			name:        "Missing BuildName",
			buildTime:   "2026-04-13",
			buildCommit: "abcdef123",
			buildVer:    "v1.0.0",
			wantErrMsg:  "BuildName is required",
			wantFlags:   Flags{Name: DefaultName, Description: DefaultDescription, Time: "2026-04-13", Commit: "abcdef123", Version: "v1.0.0"},
		},
		{
			name:        "Missing BuildCommit",
			buildName:   "testapp",
			buildTime:   "2026-04-13",
			buildVer:    "v1.0.0",
			wantErrMsg:  "BuildCommit is required",
			wantFlags:   Flags{Name: "testapp", Description: DefaultDescription, Time: "2026-04-13", Commit: "unknown", Version: "v1.0.0"},
		},
		{
			name:       "Development build",
			wantErrMsg: "BuildName is required\nBuildTime is required\nBuildCommit is required\nBuildVersion is required",
			wantFlags:  *defaultFlags(),
		},
		{
			name:        "Success Case",
			buildName:   "testapp",
			buildTime:   "2026-04-13",
			buildCommit: "abcdef123",
			buildVer:    "v1.0.0",
			wantFlags:   Flags{Name: "testapp", Description: DefaultDescription, Time: "2026-04-13", Commit: "abcdef123", Version: "v1.0.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildFlags = defaultFlags()
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()
			switch {
			case tt.wantErrMsg == "" && err != nil:
				t.Errorf("Initialize() unexpected error: %v", err)
			case tt.wantErrMsg != "" && err == nil:
				t.Errorf("Initialize() expected error, got nil")
			case tt.wantErrMsg != "" && err.Error() != tt.wantErrMsg:
				t.Errorf("Initialize() error = %q, want %q", err, tt.wantErrMsg)
			}

			if *GetBuildFlags() != tt.wantFlags {
				t.Errorf("GetBuildFlags() = %+v, want %+v", *GetBuildFlags(), tt.wantFlags)
			}
		})
	}
}

func TestFlagsString(t *testing.T) {
	f := Flags{Name: "dronewatch", Version: "v0.3.0", Commit: "abc123", Time: "2026-10-01"}
	want := "dronewatch v0.3.0 (commit abc123, built 2026-10-01)"
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
