// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package precompile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nifforge/precomp/internal/archive"
	"github.com/nifforge/precomp/internal/checksum"
)

// ErrArtifactUnavailable tags restore failures where the expected
// archive could not be found in the cache or downloaded.
var ErrArtifactUnavailable = errors.New("precompiled artifact unavailable")

// Restore makes the precompiled native library available in the output
// directory. If the library file already exists there, Restore returns
// immediately without any cache or network activity. Otherwise it
// resolves the current host's target and best-matching NIF version,
// downloads the archive into the cache if absent, verifies it against
// the ledger, and extracts it.
//
// Failures are tagged: ErrArtifactUnavailable for a missing archive,
// the checksum package's errors for integrity failures, and
// *archive.ExtractionError for unpack failures. Callers map these to a
// recovery action; see EnsureAvailable.
func (o *Orchestrator) Restore(ctx context.Context) error {
	libPath := filepath.Join(o.opts.OutputDir, o.opts.LibName)
	if _, err := os.Stat(libPath); err == nil {
		return nil
	}

	// Target resolution failure is fatal: no fallback target is ever
	// substituted.
	cur, err := o.pc.CurrentTarget()
	if err != nil {
		return err
	}

	nifVersion, err := BestNIFVersion(o.opts.NIFVersion, o.opts.NIFVersions)
	if err != nil {
		return fmt.Errorf("%w for %s: %v", ErrArtifactUnavailable, cur, err)
	}

	basename := ArtifactBasename(o.opts.App, nifVersion, cur, o.opts.Version)
	cachePath := filepath.Join(o.opts.CacheDir, basename)
	if _, err := os.Stat(cachePath); err != nil {
		if err := o.fetchArtifact(ctx, basename, cachePath); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}

	ledger, err := checksum.Load(o.opts.LedgerPath)
	if err != nil {
		return err
	}
	if err := ledger.Verify(basename, checksum.Algorithm, data); err != nil {
		return fmt.Errorf("verify %s: %w", basename, err)
	}

	if err := archive.Extract(cachePath, o.opts.OutputDir); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) fetchArtifact(ctx context.Context, basename, cachePath string) error {
	url, err := ArchiveURL(o.opts.URLTemplate, basename)
	if err != nil {
		return err
	}
	client, err := o.client()
	if err != nil {
		return err
	}
	if _, err := client.GetFile(ctx, url, cachePath); err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	return nil
}

// Recover consults the precompiler's unavailable-target hook for the
// action to take when Restore fails. Without a hook the default is a
// native source build.
func (o *Orchestrator) Recover(target string) Recovery {
	if hook := o.pc.Hooks().Unavailable; hook != nil {
		return hook(target)
	}
	return RecoverCompile
}

// EnsureAvailable runs the full restore-or-fallback protocol: restore
// the precompiled artifact if possible, otherwise apply the recovery
// policy — compile from source by default, or skip entirely when the
// precompiler declares the platform intentionally unsupported.
func (o *Orchestrator) EnsureAvailable(ctx context.Context) error {
	err := o.Restore(ctx)
	if err == nil {
		return nil
	}

	cur, terr := o.pc.CurrentTarget()
	if terr != nil {
		return terr
	}
	switch o.Recover(cur) {
	case RecoverIgnore:
		o.logger.Warn("precompiled artifact unavailable, skipping on this platform",
			"target", cur, "error", err)
		return nil
	default:
		o.logger.Warn("precompiled artifact unavailable, building from source",
			"target", cur, "error", err)
		return o.pc.BuildNative(ctx, o.opts.Compiler)
	}
}
