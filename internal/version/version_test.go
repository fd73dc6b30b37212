// Copyright (c) 2021 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package version

import "testing"

// TestSemVerParsing ensures parsing semantic version strings returns the
// expected components and rejects malformed versions.
func TestSemVerParsing(t *testing.T) {
	tests := []struct {
		ver     string
		want    semVer
		invalid bool
	}{
		{ver: "0.0.4", want: semVer{0, 0, 4, "", ""}},
		{ver: "10.20.30", want: semVer{10, 20, 30, "", ""}},
		{ver: "1.1.2-prerelease+meta", want: semVer{1, 1, 2, "prerelease", "meta"}},
		{ver: "1.1.2+meta-valid", want: semVer{1, 1, 2, "", "meta-valid"}},
		{ver: "1.0.0-alpha.beta.1", want: semVer{1, 0, 0, "alpha.beta.1", ""}},
		{ver: "1.0.0-rc.1+build.123", want: semVer{1, 0, 0, "rc.1", "build.123"}},
		{ver: "0.1.0-pre", want: semVer{0, 1, 0, "pre", ""}},
		{ver: "1", invalid: true},
		{ver: "1.2", invalid: true},
		{ver: "01.1.1", invalid: true},
		{ver: "1.2.3-0123", invalid: true},
		{ver: "1.2.3+meta+meta", invalid: true},
		{ver: "1.2.3-alpha_beta", invalid: true},
		{ver: "99999999999999999999999.0.0", invalid: true},
	}

	for _, test := range tests {
		got, err := parseSemVer(test.ver)
		if test.invalid {
			if err == nil {
				t.Errorf("%q: expected error, got %v", test.ver, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", test.ver, err)
			continue
		}
		if got != test.want {
			t.Errorf("%q: got %+v, want %+v", test.ver, got, test.want)
		}
		if got.String() != test.ver {
			t.Errorf("%q: round trip produced %q", test.ver, got.String())
		}
	}
}

// TestVersionComponents ensures the package version matches its components.
func TestVersionComponents(t *testing.T) {
	v := semVer{Major, Minor, Patch, PreRelease, BuildMetadata}
	if v.String() != String() {
		t.Fatalf("components %v do not match version %q", v, String())
	}
}
