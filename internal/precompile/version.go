// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package precompile

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// BestNIFVersion selects the published NIF version to use for a host
// running the given version. An exact match wins; otherwise the highest
// published version within the same major version that does not exceed
// the running version is chosen. Linking against an equal-or-older minor
// of the same major is a designed compatibility concession, not an error
// path.
func BestNIFVersion(running string, published []string) (string, error) {
	rv := "v" + running
	if !semver.IsValid(rv) {
		return "", fmt.Errorf("invalid NIF version %q", running)
	}

	best := ""
	for _, p := range published {
		pv := "v" + p
		if !semver.IsValid(pv) {
			continue
		}
		if semver.Compare(pv, rv) == 0 {
			return p, nil
		}
		if semver.Major(pv) != semver.Major(rv) || semver.Compare(pv, rv) > 0 {
			continue
		}
		if best == "" || semver.Compare(pv, "v"+best) > 0 {
			best = p
		}
	}
	if best == "" {
		return "", fmt.Errorf("no published NIF version is compatible with %s (published: %v)", running, published)
	}
	return best, nil
}
