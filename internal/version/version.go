// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version houses the version information of the adotd utilities.
package version

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strconv"
)

// Version is the application version following semantic versioning 2.0.0
// (https://semver.org/).
//
// It may be overridden during the build process with:
// '-ldflags "-X github.com/alterdot/adotd/internal/version.Version=fullsemver"'
//
// It MUST be a full semantic version or the package will panic at runtime.
// Building from source without build metadata appends the VCS revision.
var Version = "0.1.0-pre"

// The individual components of Version, set by init.
var (
	Major         uint
	Minor         uint
	Patch         uint
	PreRelease    string
	BuildMetadata string
)

// semverRE matches a semantic version string and captures its components.
var semverRE = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
	`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*` +
	`[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

// semVer holds the parsed components of a semantic version.
type semVer struct {
	major, minor, patch uint
	pre, build          string
}

// String returns the semantic version string of the components.
func (v semVer) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	if v.pre != "" {
		s += "-" + v.pre
	}
	if v.build != "" {
		s += "+" + v.build
	}
	return s
}

// parseSemVer parses a semantic version string.
func parseSemVer(s string) (semVer, error) {
	m := semverRE.FindStringSubmatch(s)
	if m == nil {
		return semVer{}, fmt.Errorf("malformed version string %q: does not "+
			"conform to semantic versioning", s)
	}
	var nums [3]uint
	for i, field := range []string{"major", "minor", "patch"} {
		n, err := strconv.ParseUint(m[i+1], 10, 0)
		if err != nil {
			return semVer{}, fmt.Errorf("malformed semver %s: %w", field, err)
		}
		nums[i] = uint(n)
	}
	return semVer{nums[0], nums[1], nums[2], m[4], m[5]}, nil
}

// vcsRevision returns the abbreviated git revision the binary was built from
// or an empty string when it is unknown.
func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var vcs, revision string
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs":
			vcs = bs.Value
		case "vcs.revision":
			revision = bs.Value
		}
	}
	if vcs == "git" && len(revision) > 9 {
		revision = revision[:9]
	}
	if vcs == "" {
		return ""
	}
	return revision
}

func init() {
	v, err := parseSemVer(Version)
	if err != nil {
		panic(err)
	}
	if v.build == "" {
		v.build = vcsRevision()
		Version = v.String()
	}
	Major, Minor, Patch = v.major, v.minor, v.patch
	PreRelease, BuildMetadata = v.pre, v.build
}

// String returns the application version.
func String() string {
	return Version
}
