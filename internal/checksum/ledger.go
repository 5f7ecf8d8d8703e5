// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package checksum maintains the ledger mapping artifact basenames to
// their recorded digests, and verifies downloaded archives against it.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Algorithm is the single digest algorithm the ledger supports.
const Algorithm = "sha256"

// DefaultFile is the ledger file name at the project root. It is meant to
// be committed to version control as a release artifact.
const DefaultFile = "checksum.json"

var (
	// ErrEntryMissing reports that the ledger has no entry for an
	// artifact basename.
	ErrEntryMissing = errors.New("no ledger entry for artifact")

	// ErrAlgorithmUnsupported reports a digest algorithm other than
	// sha256, either requested or recorded.
	ErrAlgorithmUnsupported = errors.New("unsupported checksum algorithm")
)

// MismatchError reports that an artifact's digest does not match the
// ledger entry.
type MismatchError struct {
	Basename string
	Want     string
	Got      string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want %s, got %s", e.Basename, e.Want, e.Got)
}

// Ledger maps artifact basenames to "algorithm:hexdigest" strings.
// Exactly one entry exists per basename.
type Ledger struct {
	entries map[string]string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]string)}
}

// Record upserts the entry for basename.
func (l *Ledger) Record(basename, algorithm, digest string) {
	if l.entries == nil {
		l.entries = make(map[string]string)
	}
	l.entries[basename] = algorithm + ":" + digest
}

// Entry returns the recorded "algorithm:hexdigest" string for basename.
func (l *Ledger) Entry(basename string) (string, bool) {
	entry, ok := l.entries[basename]
	return entry, ok
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Persist serializes the full ledger to path, overwriting existing
// content. Entries are sorted by basename so the output is deterministic
// and diffable.
func (l *Ledger) Persist(path string) error {
	// encoding/json writes map keys in sorted order.
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load parses the ledger file at path. A missing file yields an empty
// ledger; a file that exists but cannot be parsed is an error, so that
// corruption is not silently treated as "no entries".
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}
	return &Ledger{entries: entries}, nil
}

// Verify checks data against the ledger entry for basename. It fails with
// ErrEntryMissing if no entry exists, ErrAlgorithmUnsupported if either
// the requested or the recorded algorithm is not sha256, and a
// *MismatchError if the digests differ.
func (l *Ledger) Verify(basename, algorithm string, data []byte) error {
	entry, ok := l.entries[basename]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryMissing, basename)
	}
	if algorithm != Algorithm {
		return fmt.Errorf("%w: %s", ErrAlgorithmUnsupported, algorithm)
	}
	recordedAlgo, recordedDigest, ok := strings.Cut(entry, ":")
	if !ok || recordedAlgo != Algorithm {
		return fmt.Errorf("%w: ledger records %q for %s", ErrAlgorithmUnsupported, entry, basename)
	}
	got := Sum(data)
	if got != recordedDigest {
		return &MismatchError{Basename: basename, Want: recordedDigest, Got: got}
	}
	return nil
}

// Sum returns the hex-encoded sha256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SumFile returns the hex-encoded sha256 digest of the file at path.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
