// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package precompile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nifforge/precomp/internal/archive"
	"github.com/nifforge/precomp/internal/checksum"
	"github.com/nifforge/precomp/internal/download"
	"github.com/nifforge/precomp/internal/env"
)

// Options configures an Orchestrator.
type Options struct {
	// App and Version name the project; both appear in artifact file
	// names.
	App     string
	Version string

	// NIFVersions is the set of published NIF ABI versions; NIFVersion
	// is the ABI version of the running host.
	NIFVersions []string
	NIFVersion  string

	// URLTemplate produces download URLs; it must contain the
	// @{artefact_filename} token.
	URLTemplate string

	// OutputDir is the live build-output directory. Defaults to "priv".
	OutputDir string

	// LibName is the native library file expected inside OutputDir
	// after a build or restore.
	LibName string

	// Include lists the archive include patterns relative to
	// OutputDir. Empty packages the whole tree.
	Include []string

	// CacheDir holds artifact archives. Defaults to env.CacheDir().
	CacheDir string

	// LedgerPath is the checksum ledger location. Defaults to
	// checksum.DefaultFile at the working directory.
	LedgerPath string

	// Compiler is threaded into every build invocation.
	Compiler CompilerConfig

	// Downloader is used for fetches; a default client is constructed
	// lazily when nil.
	Downloader *download.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator drives the precompile and restore lifecycles for one
// project against a pluggable Precompiler.
type Orchestrator struct {
	pc     Precompiler
	opts   Options
	logger *slog.Logger
}

// New validates opts, fills defaults, and returns an Orchestrator.
func New(pc Precompiler, opts Options) (*Orchestrator, error) {
	if pc == nil {
		return nil, errors.New("precompile: nil precompiler")
	}
	if opts.App == "" || opts.Version == "" {
		return nil, errors.New("precompile: app and version are required")
	}
	if opts.NIFVersion == "" {
		return nil, errors.New("precompile: NIF version is required")
	}
	if opts.CacheDir == "" {
		cacheDir, err := env.CacheDir()
		if err != nil {
			return nil, err
		}
		opts.CacheDir = cacheDir
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "priv"
	}
	if opts.LedgerPath == "" {
		opts.LedgerPath = checksum.DefaultFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{pc: pc, opts: opts, logger: logger}, nil
}

// Targets returns the precompiler's target enumeration for op.
func (o *Orchestrator) Targets(op Op) ([]string, error) {
	return o.pc.AllSupportedTargets(op)
}

// Run executes one full precompile invocation: build, archive and
// checksum every Compile target in enumeration order, merge the results
// into the ledger, fire the optional post-run hook, and restore the
// current host's own artifact into the live output directory.
//
// Per-target builds run strictly sequentially; the first failure aborts
// the run and no later target is attempted.
func (o *Orchestrator) Run(ctx context.Context) ([]Artifact, error) {
	targets, err := o.pc.AllSupportedTargets(Compile)
	if err != nil {
		return nil, err
	}
	hooks := o.pc.Hooks()

	artifacts := make([]Artifact, 0, len(targets))
	for _, tgt := range targets {
		a, err := o.precompileTarget(ctx, tgt)
		if err != nil {
			return nil, fmt.Errorf("failed to precompile %s: %w", tgt, err)
		}
		artifacts = append(artifacts, a)
		o.logger.Info("precompiled", "target", tgt, "artifact", a.Basename)

		if hooks.PostTarget != nil {
			if err := hooks.PostTarget(tgt); err != nil {
				return nil, fmt.Errorf("post-target hook for %s: %w", tgt, err)
			}
		}
	}

	if err := o.writeLedger(artifacts); err != nil {
		return nil, err
	}
	if err := o.writeMetadata(targets, artifacts); err != nil {
		return nil, err
	}

	if hooks.PostRun != nil {
		if err := hooks.PostRun(); err != nil {
			return nil, fmt.Errorf("post-run hook: %w", err)
		}
	}

	if err := o.restoreNative(artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (o *Orchestrator) precompileTarget(ctx context.Context, tgt string) (Artifact, error) {
	if err := o.pc.PrecompileTarget(ctx, tgt, o.opts.Compiler); err != nil {
		return Artifact{}, err
	}

	basename := ArtifactBasename(o.opts.App, o.opts.NIFVersion, tgt, o.opts.Version)
	archivePath := filepath.Join(o.opts.CacheDir, basename)
	if _, err := archive.Create(archivePath, o.opts.OutputDir, o.opts.Include); err != nil {
		return Artifact{}, err
	}

	digest, err := checksum.SumFile(archivePath)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Target:    tgt,
		Basename:  basename,
		Path:      archivePath,
		Checksum:  digest,
		Algorithm: checksum.Algorithm,
	}, nil
}

// writeLedger merges this run's artifacts into the existing ledger by
// basename and rewrites it. Basenames already encode app, target and
// version, so entries from earlier runs for other targets survive.
func (o *Orchestrator) writeLedger(artifacts []Artifact) error {
	ledger, err := checksum.Load(o.opts.LedgerPath)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		ledger.Record(a.Basename, a.Algorithm, a.Checksum)
	}
	return ledger.Persist(o.opts.LedgerPath)
}

// writeMetadata records the run's inputs and outputs next to the cached
// archives, under the cache metadata directory.
func (o *Orchestrator) writeMetadata(targets []string, artifacts []Artifact) error {
	type runMetadata struct {
		App        string            `json:"app"`
		Version    string            `json:"version"`
		NIFVersion string            `json:"nif_version"`
		Targets    []string          `json:"targets"`
		Artifacts  map[string]string `json:"artifacts"` // target -> basename
	}

	meta := runMetadata{
		App:        o.opts.App,
		Version:    o.opts.Version,
		NIFVersion: o.opts.NIFVersion,
		Targets:    targets,
		Artifacts:  make(map[string]string, len(artifacts)),
	}
	for _, a := range artifacts {
		meta.Artifacts[a.Target] = a.Basename
	}

	metadataDir := filepath.Join(o.opts.CacheDir, "metadata")
	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(metadataDir, "metadata-"+o.opts.App+".json")
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// restoreNative extracts the just-built artifact for the current host
// back into the live output directory, so the building machine can use
// its own output without a separate fetch step.
func (o *Orchestrator) restoreNative(artifacts []Artifact) error {
	cur, err := o.pc.CurrentTarget()
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		if a.Target == cur {
			return archive.Extract(a.Path, o.opts.OutputDir)
		}
	}
	o.logger.Warn("no artifact was built for the current host", "target", cur)
	return nil
}

// FetchAll downloads the published artifacts for every Fetch target and
// every published NIF version, then merges their checksums into the
// ledger. It is meant to be run by maintainers after a release so the
// ledger can be committed alongside the source.
func (o *Orchestrator) FetchAll(ctx context.Context, ignoreUnavailable bool) ([]download.Fetched, error) {
	targets, err := o.pc.AllSupportedTargets(Fetch)
	if err != nil {
		return nil, err
	}

	reqs := make([]download.Request, 0, len(targets)*len(o.opts.NIFVersions))
	for _, tgt := range targets {
		for _, nifVersion := range o.opts.NIFVersions {
			basename := ArtifactBasename(o.opts.App, nifVersion, tgt, o.opts.Version)
			url, err := ArchiveURL(o.opts.URLTemplate, basename)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, download.Request{Target: tgt, URL: url})
		}
	}

	client, err := o.client()
	if err != nil {
		return nil, err
	}
	fetched, err := client.Batch(ctx, reqs, download.BatchOptions{
		CacheDir:          o.opts.CacheDir,
		IgnoreUnavailable: ignoreUnavailable,
	})
	if err != nil {
		return nil, err
	}

	ledger, err := checksum.Load(o.opts.LedgerPath)
	if err != nil {
		return nil, err
	}
	for _, f := range fetched {
		ledger.Record(f.Basename, checksum.Algorithm, f.Checksum)
	}
	if err := ledger.Persist(o.opts.LedgerPath); err != nil {
		return nil, err
	}
	return fetched, nil
}

func (o *Orchestrator) client() (*download.Client, error) {
	if o.opts.Downloader != nil {
		return o.opts.Downloader, nil
	}
	client, err := download.NewClient(download.Options{Logger: o.logger})
	if err != nil {
		return nil, err
	}
	o.opts.Downloader = client
	return client, nil
}
