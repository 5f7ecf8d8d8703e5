// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package target resolves the running host's canonical target triplet,
// the "{architecture}-{os}-{abi}" string used to name precompiled
// artifacts (e.g. "x86_64-linux-gnu").
package target

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"unicode"

	"github.com/nifforge/precomp/internal/env"
)

// Current returns the running host's target triplet. The PRECOMP_TARGET
// environment variable overrides detection; the override is validated
// and normalized before being returned.
func Current() (string, error) {
	if override := env.TargetOverride(); override != "" {
		return Normalize(override)
	}

	arch, err := hostArch()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "linux":
		return arch + "-linux-gnu", nil
	case "darwin":
		return arch + "-apple-darwin", nil
	case "windows":
		return arch + "-windows-" + windowsABI(), nil
	case "freebsd":
		return arch + "-unknown-freebsd", nil
	default:
		return "", fmt.Errorf("cannot resolve target triplet for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
}

// Normalize validates a triplet and strips OS version suffixes from
// apple targets, where uname reports strings like
// "x86_64-apple-darwin21.6.0".
func Normalize(triplet string) (string, error) {
	parts := strings.Split(triplet, "-")
	if len(parts) < 3 || len(parts) > 4 {
		return "", fmt.Errorf("cannot parse target triplet %q: expected 3 or 4 components, got %d", triplet, len(parts))
	}
	for _, part := range parts {
		if part == "" {
			return "", fmt.Errorf("cannot parse target triplet %q: empty component", triplet)
		}
	}
	if parts[1] == "apple" {
		last := len(parts) - 1
		parts[last] = strings.TrimRightFunc(parts[last], func(r rune) bool {
			return unicode.IsDigit(r) || r == '.'
		})
		if parts[last] == "" {
			return "", fmt.Errorf("cannot parse target triplet %q: empty OS component", triplet)
		}
	}
	return strings.Join(parts, "-"), nil
}

// goarchNames maps Go architecture names to their triplet equivalents.
var goarchNames = map[string]string{
	"amd64":   "x86_64",
	"arm64":   "aarch64",
	"386":     "i686",
	"arm":     "arm",
	"riscv64": "riscv64",
	"ppc64le": "ppc64le",
	"s390x":   "s390x",
}

// unameAliases maps uname machine values that differ from the canonical
// triplet architecture name.
var unameAliases = map[string]string{
	"arm64": "aarch64",
	"amd64": "x86_64",
	"i386":  "i686",
	"i586":  "i686",
}

func hostArch() (string, error) {
	if runtime.GOOS == "windows" {
		switch arch := os.Getenv("PROCESSOR_ARCHITECTURE"); arch {
		case "AMD64":
			return "x86_64", nil
		case "ARM64":
			return "aarch64", nil
		case "x86":
			return "i686", nil
		}
		// Fall through to the GOARCH mapping when the variable is
		// missing or unrecognized.
	}
	if machine := unameMachine(); machine != "" {
		if alias, ok := unameAliases[machine]; ok {
			return alias, nil
		}
		return machine, nil
	}
	if arch, ok := goarchNames[runtime.GOARCH]; ok {
		return arch, nil
	}
	return "", fmt.Errorf("cannot resolve host architecture for %s", runtime.GOARCH)
}

// windowsABI picks the ABI component from the configured C compiler:
// a gcc-style compiler implies the gnu ABI, anything else msvc.
func windowsABI() string {
	if cc := os.Getenv("CC"); strings.Contains(cc, "gcc") {
		return "gnu"
	}
	return "msvc"
}
