// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package precompile drives the precompiled-artifact lifecycle: building
// an archive per target, recording checksums in the ledger, and restoring
// a verified artifact on a consuming machine with fallback to source
// compilation.
package precompile

import "context"

// Op selects which target enumeration a precompiler is asked for.
type Op int

const (
	// Compile enumerates the targets buildable on the current host.
	Compile Op = iota

	// Fetch enumerates the full target matrix the project publishes.
	Fetch
)

// Recovery is the action taken when no precompiled artifact is available
// for the current host's target.
type Recovery int

const (
	// RecoverCompile falls back to a native source build.
	RecoverCompile Recovery = iota

	// RecoverIgnore treats the missing artifact as a no-op, for
	// libraries intentionally unsupported on some platforms.
	RecoverIgnore
)

// CompilerConfig names the compilers threaded into build invocations.
// It replaces mutation of the process-wide CC/CXX/CPP variables: builds
// receive their compiler selection as an argument instead.
type CompilerConfig struct {
	CC  string
	CXX string
	CPP string
}

// Precompiler is the pluggable strategy providing target enumeration and
// build actions. The lifecycle code is purely a consumer of this
// interface.
type Precompiler interface {
	// AllSupportedTargets returns the target triplets supported for op.
	// Compile must yield a subset buildable on the current host; Fetch
	// the full published matrix.
	AllSupportedTargets(op Op) ([]string, error)

	// CurrentTarget returns the triplet of the running host.
	CurrentTarget() (string, error)

	// BuildNative compiles for the current host into the project's
	// output directory.
	BuildNative(ctx context.Context, cc CompilerConfig) error

	// PrecompileTarget builds for one target into the project's output
	// directory.
	PrecompileTarget(ctx context.Context, target string, cc CompilerConfig) error

	// Hooks returns the precompiler's optional lifecycle callbacks.
	Hooks() Hooks
}

// Hooks carries the optional precompiler callbacks. A nil field means
// the precompiler does not implement that hook.
type Hooks struct {
	// PostTarget runs after each successful per-target build, e.g. to
	// clean intermediate output.
	PostTarget func(target string) error

	// PostRun runs once after all targets have been built and the
	// ledger written.
	PostRun func() error

	// Unavailable decides the recovery action when the current host's
	// target has no published artifact. Nil defaults to
	// RecoverCompile.
	Unavailable func(target string) Recovery
}
