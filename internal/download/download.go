// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package download fetches artifact archives over HTTPS with explicit
// trust-store resolution and proxy support from the environment.
package download

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nifforge/precomp/internal/env"
)

// DefaultTimeout bounds a single download, including the body read.
const DefaultTimeout = 60 * time.Second

// ErrNoTrustStore reports that no TLS trust store could be resolved.
// Downloads are refused rather than performed without peer verification.
var ErrNoTrustStore = errors.New("no TLS trust store could be resolved")

// wellKnownCABundles are probed when the platform provides no usable
// system pool and no override is configured.
var wellKnownCABundles = []string{
	"/etc/ssl/certs/ca-certificates.crt",
	"/etc/pki/tls/certs/ca-bundle.crt",
	"/etc/ssl/ca-bundle.pem",
	"/etc/ssl/cert.pem",
	"/usr/local/share/certs/ca-root-nss.crt",
}

// Client performs artifact downloads. The zero value is not usable; use
// NewClient.
type Client struct {
	httpClient *http.Client

	// Logger is used for warnings about skipped downloads. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

// Options configures a Client.
type Options struct {
	// CACertFile is a PEM bundle path used instead of the system trust
	// store. Defaults to the PRECOMP_CACERT environment variable.
	CACertFile string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewClient builds a client whose TLS configuration is resolved from, in
// order: the explicit override bundle, the OS trust store, and a fixed
// list of well-known certificate bundle paths. If none resolve, NewClient
// fails closed with ErrNoTrustStore.
func NewClient(opts Options) (*Client, error) {
	caFile := opts.CACertFile
	if caFile == "" {
		caFile = env.CACertFile()
	}
	pool, err := trustStore(caFile)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		},
		Logger: opts.Logger,
	}, nil
}

func trustStore(override string) (*x509.CertPool, error) {
	if override != "" {
		pem, err := os.ReadFile(override)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle %s: %w", override, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no usable certificates", override)
		}
		return pool, nil
	}

	if pool, err := x509.SystemCertPool(); err == nil && pool != nil {
		return pool, nil
	}

	for _, candidate := range wellKnownCABundles {
		pem, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM(pem) {
			return pool, nil
		}
	}

	return nil, ErrNoTrustStore
}

// Get fetches url and returns the response body. Any non-200 response or
// transport failure is returned as an error value naming the URL, leaving
// retry and ignore policy to the caller.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return data, nil
}

// GetFile fetches url and persists the body at dst, writing through a
// temporary file renamed into place. Returns the body.
func (c *Client) GetFile(ctx context.Context, url, dst string) ([]byte, error) {
	data, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	if err := writeAtomic(dst, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
