// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package download

import (
	"context"
	"fmt"
	neturl "net/url"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nifforge/precomp/internal/checksum"
)

// DefaultConcurrency caps the number of in-flight downloads in a batch.
const DefaultConcurrency = 8

// Request names one artifact to fetch.
type Request struct {
	Target string
	URL    string
}

// Fetched describes one artifact persisted to the cache directory.
type Fetched struct {
	Target   string
	Basename string
	Path     string
	Checksum string // hex-encoded sha256 digest
}

// BatchOptions configures a batch download.
type BatchOptions struct {
	// CacheDir receives the downloaded files, one per request, named
	// from the URL's last path segment.
	CacheDir string

	// Concurrency caps in-flight downloads. Defaults to
	// DefaultConcurrency.
	Concurrency int

	// IgnoreUnavailable logs and skips failed downloads instead of
	// aborting the batch.
	IgnoreUnavailable bool
}

// Batch downloads the requested artifacts with at most
// opts.Concurrency in-flight requests and no ordering guarantee on
// completion. Each successful download is written to the cache directory
// (via a temporary file renamed into place) and checksummed. A failure
// aborts the whole batch naming the failing URL unless
// opts.IgnoreUnavailable is set, in which case it is logged and skipped.
// Results are returned in request order.
func (c *Client) Batch(ctx context.Context, reqs []Request, opts BatchOptions) ([]Fetched, error) {
	if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	fetched := make([]*Fetched, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			data, err := c.Get(ctx, req.URL)
			if err != nil {
				if opts.IgnoreUnavailable {
					c.logger().Warn("artifact unavailable, skipping",
						"target", req.Target, "url", req.URL, "error", err)
					return nil
				}
				return fmt.Errorf("download for target %s: %w", req.Target, err)
			}

			basename := urlBasename(req.URL)
			dst := filepath.Join(opts.CacheDir, basename)
			if err := writeAtomic(dst, data); err != nil {
				return fmt.Errorf("cache %s: %w", basename, err)
			}

			fetched[i] = &Fetched{
				Target:   req.Target,
				Basename: basename,
				Path:     dst,
				Checksum: checksum.Sum(data),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Fetched, 0, len(reqs))
	for _, f := range fetched {
		if f != nil {
			results = append(results, *f)
		}
	}
	return results, nil
}

// urlBasename derives the cache file name from the URL's last path
// segment.
func urlBasename(rawURL string) string {
	if u, err := neturl.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// writeAtomic writes data to a temporary file in the destination
// directory and renames it into place, so concurrent cache readers never
// observe a partially written entry.
func writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
