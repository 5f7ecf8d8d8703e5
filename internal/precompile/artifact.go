// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package precompile

import (
	"fmt"
	"strings"
)

// FilenameToken is the placeholder in URL templates substituted with the
// computed archive basename.
const FilenameToken = "@{artefact_filename}"

// Artifact is one packaged, checksummed build output for a target.
// Artifacts are never mutated after creation; rebuilding an archive
// supersedes the previous value.
type Artifact struct {
	Target    string
	Basename  string
	Path      string // archive location in the cache directory
	Checksum  string // hex-encoded digest
	Algorithm string // "sha256"
}

// ArtifactBasename derives the deterministic archive file name for one
// app/NIF-version/target/version combination, so re-running a build with
// identical inputs overwrites in place.
func ArtifactBasename(app, nifVersion, target, version string) string {
	return fmt.Sprintf("%s-nif-%s-%s-%s.tar.gz", app, nifVersion, target, version)
}

// ArchiveURL substitutes the archive basename into the configured URL
// template.
func ArchiveURL(template, basename string) (string, error) {
	if !strings.Contains(template, FilenameToken) {
		return "", fmt.Errorf("url template %q does not contain the %s token", template, FilenameToken)
	}
	return strings.ReplaceAll(template, FilenameToken, basename), nil
}
