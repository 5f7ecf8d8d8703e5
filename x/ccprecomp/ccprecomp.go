// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ccprecomp provides a make-driven Precompiler. Each target is
// built by invoking make with an explicitly configured cross toolchain;
// no toolchain autodetection is attempted.
package ccprecomp

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/nifforge/precomp/internal/precompile"
	"github.com/nifforge/precomp/internal/target"
)

// Toolchain names the compilers used to build for one target.
type Toolchain struct {
	CC  string
	CXX string
	CPP string
}

// Precompiler builds native libraries by running make. The compile
// target set is the set of configured toolchains; the fetch set is the
// published target matrix.
type Precompiler struct {
	// WorkDir is the directory make runs in (the project root).
	WorkDir string

	// Makefile overrides the default makefile name.
	Makefile string

	// FetchTargets is the full published target matrix. Defaults to
	// the configured toolchain targets.
	FetchTargets []string

	// Toolchains maps each buildable target to its cross toolchain.
	Toolchains map[string]Toolchain

	// Clean lists files removed from the output directory after each
	// per-target build, relative to WorkDir.
	Clean []string

	// Env adds variables to every make invocation.
	Env map[string]string

	// Stdout and Stderr receive make output; they default to the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
}

var _ precompile.Precompiler = (*Precompiler)(nil)

// AllSupportedTargets returns the toolchain targets for Compile and the
// published matrix for Fetch, both sorted.
func (p *Precompiler) AllSupportedTargets(op precompile.Op) ([]string, error) {
	switch op {
	case precompile.Compile:
		targets := make([]string, 0, len(p.Toolchains))
		for tgt := range p.Toolchains {
			targets = append(targets, tgt)
		}
		sort.Strings(targets)
		return targets, nil
	case precompile.Fetch:
		if len(p.FetchTargets) > 0 {
			targets := append([]string(nil), p.FetchTargets...)
			sort.Strings(targets)
			return targets, nil
		}
		return p.AllSupportedTargets(precompile.Compile)
	default:
		return nil, fmt.Errorf("ccprecomp: unknown target operation %d", op)
	}
}

// CurrentTarget resolves the running host's triplet.
func (p *Precompiler) CurrentTarget() (string, error) {
	return target.Current()
}

// BuildNative runs make for the current host with the given compiler
// configuration.
func (p *Precompiler) BuildNative(ctx context.Context, cc precompile.CompilerConfig) error {
	return p.runMake(ctx, Toolchain{CC: cc.CC, CXX: cc.CXX, CPP: cc.CPP})
}

// PrecompileTarget runs make with the target's configured cross
// toolchain. Fields left empty in the toolchain fall back to the global
// compiler configuration.
func (p *Precompiler) PrecompileTarget(ctx context.Context, tgt string, cc precompile.CompilerConfig) error {
	tc, ok := p.Toolchains[tgt]
	if !ok {
		return fmt.Errorf("ccprecomp: no toolchain configured for %s", tgt)
	}
	if tc.CC == "" {
		tc.CC = cc.CC
	}
	if tc.CXX == "" {
		tc.CXX = cc.CXX
	}
	if tc.CPP == "" {
		tc.CPP = cc.CPP
	}
	return p.runMake(ctx, tc)
}

// Hooks removes the configured clean files after each target build.
func (p *Precompiler) Hooks() precompile.Hooks {
	if len(p.Clean) == 0 {
		return precompile.Hooks{}
	}
	return precompile.Hooks{
		PostTarget: func(string) error {
			for _, name := range p.Clean {
				if err := os.RemoveAll(filepath.Join(p.WorkDir, name)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// runMake invokes make with the toolchain passed on the command
// environment only; the process environment is never mutated.
func (p *Precompiler) runMake(ctx context.Context, tc Toolchain) error {
	args := []string{}
	if p.Makefile != "" {
		args = append(args, "-f", p.Makefile)
	}

	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = p.WorkDir
	cmd.Env = os.Environ()
	for key, value := range p.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}
	if tc.CC != "" {
		cmd.Env = append(cmd.Env, "CC="+tc.CC)
	}
	if tc.CXX != "" {
		cmd.Env = append(cmd.Env, "CXX="+tc.CXX)
	}
	if tc.CPP != "" {
		cmd.Env = append(cmd.Env, "CPP="+tc.CPP)
	}

	cmd.Stdout = p.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = p.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("make: %w", err)
	}
	return nil
}
