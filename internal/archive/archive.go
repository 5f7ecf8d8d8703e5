// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package archive creates and extracts the gzip-compressed tar archives
// that package precompiled build outputs.
//
// Entry paths are stored relative to the packaged root. Symbolic links
// are preserved as symlink entries rather than followed.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
)

// ExtractionError reports a failure to unpack an archive.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Archive == "" {
		return fmt.Sprintf("failed to extract archive: %v", e.Err)
	}
	return fmt.Sprintf("failed to extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Create writes a gzip-compressed tar archive at archivePath containing
// the entries under baseDir matched by patterns. Patterns may be literal
// paths, single-level wildcards, or recursive (`**`) wildcards, resolved
// relative to baseDir; an empty pattern list includes the whole tree.
// Matched directories are enumerated recursively, preserving subdirectory
// structure. Returns the number of compressed bytes written.
//
// The archive is written to a temporary file and renamed into place on
// success, so a partially written archive is never exposed at archivePath.
func Create(archivePath, baseDir string, patterns []string) (int64, error) {
	if len(patterns) == 0 {
		patterns = []string{"**"}
	}

	matches, err := resolvePatterns(baseDir, patterns)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(archivePath), filepath.Base(archivePath)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw := &countingWriter{w: tmp}
	gz := gzip.NewWriter(cw)
	tw := tar.NewWriter(gz)

	pk := &packer{
		baseDir: baseDir,
		tw:      tw,
		written: make(map[string]bool),
		visited: make(map[string]bool),
	}
	for _, rel := range matches {
		if err := pk.add(rel); err != nil {
			return 0, err
		}
	}

	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), archivePath); err != nil {
		return 0, err
	}
	tmp = nil

	return cw.n, nil
}

// resolvePatterns expands the include patterns against baseDir and returns
// the matched paths, slash-separated and relative to baseDir, sorted and
// deduplicated.
func resolvePatterns(baseDir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(baseDir)
	set := make(map[string]bool)
	for _, pattern := range patterns {
		pattern = path.Clean(filepath.ToSlash(pattern))
		matched, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad include pattern %q: %w", pattern, err)
		}
		for _, m := range matched {
			set[m] = true
		}
	}
	matches := make([]string, 0, len(set))
	for m := range set {
		matches = append(matches, m)
	}
	sort.Strings(matches)
	return matches, nil
}

type packer struct {
	baseDir string
	tw      *tar.Writer
	written map[string]bool // entry names already emitted
	visited map[string]bool // canonical directory paths already traversed
}

// add emits the entry at the slash-relative path rel, recursing into
// directories.
func (p *packer) add(rel string) error {
	if rel == "." {
		return p.addDirEntries(".", p.baseDir)
	}
	if p.written[rel] {
		return nil
	}

	full := filepath.Join(p.baseDir, filepath.FromSlash(rel))
	info, err := os.Lstat(full)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		link, err := os.Readlink(full)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = rel
		p.written[rel] = true
		return p.tw.WriteHeader(hdr)

	case info.IsDir():
		// A directory reachable twice (overlapping patterns, or a
		// symlinked ancestor resolving to an already packed tree) is
		// not re-traversed.
		canonical, err := filepath.EvalSymlinks(full)
		if err != nil {
			return err
		}
		if p.visited[canonical] {
			return nil
		}
		p.visited[canonical] = true

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel + "/"
		p.written[rel] = true
		if err := p.tw.WriteHeader(hdr); err != nil {
			return err
		}
		return p.addDirEntries(rel, full)

	case info.Mode().IsRegular():
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := p.tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(full)
		if err != nil {
			return err
		}
		defer f.Close()
		p.written[rel] = true
		_, err = io.Copy(p.tw, f)
		return err

	default:
		// Sockets, devices and the like are not packaged.
		return nil
	}
}

func (p *packer) addDirEntries(rel, full string) error {
	entries, err := os.ReadDir(full)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		child := entry.Name()
		if rel != "." {
			child = rel + "/" + entry.Name()
		}
		if err := p.add(child); err != nil {
			return err
		}
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

// Extract decompresses and unpacks the archive at archivePath into dir,
// creating dir if absent.
func Extract(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	defer f.Close()

	if err := extract(f, dir); err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) {
			ee.Archive = archivePath
			return ee
		}
		return err
	}
	return nil
}

// ExtractReader decompresses and unpacks a gzip-compressed tar stream
// into dir, creating dir if absent.
func ExtractReader(r io.Reader, dir string) error {
	return extract(r, dir)
}

func extract(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return &ExtractionError{Err: fmt.Errorf("not a gzip stream: %w", err)}
	}
	defer gz.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ExtractionError{Err: err}
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ExtractionError{Err: err}
		}

		name := filepath.FromSlash(strings.TrimSuffix(hdr.Name, "/"))
		if !filepath.IsLocal(name) {
			return &ExtractionError{Err: fmt.Errorf("unsafe entry path %q", hdr.Name)}
		}
		target := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o700); err != nil {
				return &ExtractionError{Err: err}
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &ExtractionError{Err: err}
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return &ExtractionError{Err: err}
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &ExtractionError{Err: err}
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return &ExtractionError{Err: err}
			}

		default:
			// Unsupported entry types are skipped.
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
