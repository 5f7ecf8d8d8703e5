package precompile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nifforge/precomp/internal/archive"
	"github.com/nifforge/precomp/internal/checksum"
)

// stageArtifact builds a real archive holding the given files, drops it
// into cacheDir under basename, and records it in the ledger at
// ledgerPath. It returns the archive bytes for tests that serve it over
// HTTP instead.
func stageArtifact(t *testing.T, cacheDir, basename, ledgerPath string, files map[string]string) []byte {
	t.Helper()

	srcDir := t.TempDir()
	for rel, content := range files {
		if err := writeOutput(srcDir, rel, content); err != nil {
			t.Fatal(err)
		}
	}
	archivePath := filepath.Join(cacheDir, basename)
	if _, err := archive.Create(archivePath, srcDir, nil); err != nil {
		t.Fatalf("failed to stage artifact: %v", err)
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}

	ledger, err := checksum.Load(ledgerPath)
	if err != nil {
		t.Fatal(err)
	}
	ledger.Record(basename, checksum.Algorithm, checksum.Sum(data))
	if err := ledger.Persist(ledgerPath); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRestoreShortCircuitsWhenLibPresent(t *testing.T) {
	outputDir := t.TempDir()
	if err := writeOutput(outputDir, "out.bin", "already here"); err != nil {
		t.Fatal(err)
	}
	pc := &fakePrecompiler{
		current: func() (string, error) {
			t.Error("target resolution ran despite the lib being present")
			return "", errors.New("unreachable")
		},
	}
	o := newTestOrchestrator(t, pc, Options{OutputDir: outputDir})

	if err := o.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
}

func TestRestoreFromCache(t *testing.T) {
	cacheDir := t.TempDir()
	outputDir := t.TempDir()
	ledgerPath := filepath.Join(t.TempDir(), checksum.DefaultFile)
	stageArtifact(t, cacheDir, "myapp-nif-2.16-a-b-c-1.0.0.tar.gz", ledgerPath,
		map[string]string{"out.bin": "v1"})

	o := newTestOrchestrator(t, &fakePrecompiler{}, Options{
		CacheDir:   cacheDir,
		OutputDir:  outputDir,
		LedgerPath: ledgerPath,
	})

	if err := o.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outputDir, "out.bin"))
	if err != nil {
		t.Fatalf("lib missing after restore: %v", err)
	}
	if string(data) != "v1" {
		t.Errorf("restored lib = %q, want %q", data, "v1")
	}
}

func TestRestoreDownloads(t *testing.T) {
	ledgerPath := filepath.Join(t.TempDir(), checksum.DefaultFile)
	archiveBytes := stageArtifact(t, t.TempDir(), "myapp-nif-2.16-a-b-c-1.0.0.tar.gz", ledgerPath,
		map[string]string{"out.bin": "downloaded build"})

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/releases/myapp-nif-2.16-a-b-c-1.0.0.tar.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(archiveBytes)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	outputDir := t.TempDir()
	o := newTestOrchestrator(t, &fakePrecompiler{}, Options{
		URLTemplate: srv.URL + "/releases/@{artefact_filename}",
		CacheDir:    cacheDir,
		OutputDir:   outputDir,
		LedgerPath:  ledgerPath,
	})

	if err := o.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1", requests)
	}
	data, err := os.ReadFile(filepath.Join(outputDir, "out.bin"))
	if err != nil {
		t.Fatalf("lib missing after restore: %v", err)
	}
	if string(data) != "downloaded build" {
		t.Errorf("restored lib = %q, want %q", data, "downloaded build")
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "myapp-nif-2.16-a-b-c-1.0.0.tar.gz")); err != nil {
		t.Errorf("downloaded archive not cached: %v", err)
	}

	// A second restore into a fresh output dir must come from the cache.
	freshDir := t.TempDir()
	o2 := newTestOrchestrator(t, &fakePrecompiler{}, Options{
		URLTemplate: srv.URL + "/releases/@{artefact_filename}",
		CacheDir:    cacheDir,
		OutputDir:   freshDir,
		LedgerPath:  ledgerPath,
	})
	if err := o2.Restore(context.Background()); err != nil {
		t.Fatalf("second Restore failed: %v", err)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests after cached restore, want still 1", requests)
	}
}

func TestRestoreNIFVersionFallback(t *testing.T) {
	cacheDir := t.TempDir()
	outputDir := t.TempDir()
	ledgerPath := filepath.Join(t.TempDir(), checksum.DefaultFile)
	// Host runs 2.17; 2.16 is the best published match.
	stageArtifact(t, cacheDir, "myapp-nif-2.16-a-b-c-1.0.0.tar.gz", ledgerPath,
		map[string]string{"out.bin": "fallback build"})

	o := newTestOrchestrator(t, &fakePrecompiler{}, Options{
		NIFVersion:  "2.17",
		NIFVersions: []string{"2.15", "2.16"},
		CacheDir:    cacheDir,
		OutputDir:   outputDir,
		LedgerPath:  ledgerPath,
	})

	if err := o.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outputDir, "out.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fallback build" {
		t.Errorf("restored lib = %q, want the 2.16 artifact", data)
	}
}

func TestRestoreTargetResolutionIsFatal(t *testing.T) {
	resolveErr := errors.New("cannot resolve host target")
	pc := &fakePrecompiler{
		current: func() (string, error) { return "", resolveErr },
	}
	o := newTestOrchestrator(t, pc, Options{})

	err := o.Restore(context.Background())
	if !errors.Is(err, resolveErr) {
		t.Fatalf("Restore err = %v, want the resolution error", err)
	}
	if errors.Is(err, ErrArtifactUnavailable) {
		t.Error("target resolution failure must not degrade to artifact-unavailable")
	}
}

func TestRestoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	o := newTestOrchestrator(t, &fakePrecompiler{}, Options{
		URLTemplate: srv.URL + "/releases/@{artefact_filename}",
	})

	err := o.Restore(context.Background())
	if !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("Restore err = %v, want ErrArtifactUnavailable", err)
	}
}

func TestRestoreChecksumMismatch(t *testing.T) {
	cacheDir := t.TempDir()
	ledgerPath := filepath.Join(t.TempDir(), checksum.DefaultFile)
	stageArtifact(t, cacheDir, "myapp-nif-2.16-a-b-c-1.0.0.tar.gz", ledgerPath,
		map[string]string{"out.bin": "v1"})

	// Tamper with the cached archive after its checksum was recorded.
	archivePath := filepath.Join(cacheDir, "myapp-nif-2.16-a-b-c-1.0.0.tar.gz")
	if err := os.WriteFile(archivePath, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, &fakePrecompiler{}, Options{
		CacheDir:   cacheDir,
		LedgerPath: ledgerPath,
	})

	err := o.Restore(context.Background())
	var mismatch *checksum.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Restore err = %v, want *checksum.MismatchError", err)
	}
	if mismatch.Basename != "myapp-nif-2.16-a-b-c-1.0.0.tar.gz" {
		t.Errorf("mismatch names %q", mismatch.Basename)
	}
}

func TestRestoreMissingLedgerEntry(t *testing.T) {
	cacheDir := t.TempDir()
	// Archive is cached but the ledger never recorded it.
	stageArtifact(t, cacheDir, "myapp-nif-2.16-a-b-c-1.0.0.tar.gz",
		filepath.Join(t.TempDir(), "elsewhere.json"),
		map[string]string{"out.bin": "v1"})

	o := newTestOrchestrator(t, &fakePrecompiler{}, Options{
		CacheDir:   cacheDir,
		LedgerPath: filepath.Join(t.TempDir(), checksum.DefaultFile),
	})

	err := o.Restore(context.Background())
	if !errors.Is(err, checksum.ErrEntryMissing) {
		t.Fatalf("Restore err = %v, want ErrEntryMissing", err)
	}
}

func TestEnsureAvailableRestores(t *testing.T) {
	cacheDir := t.TempDir()
	outputDir := t.TempDir()
	ledgerPath := filepath.Join(t.TempDir(), checksum.DefaultFile)
	stageArtifact(t, cacheDir, "myapp-nif-2.16-a-b-c-1.0.0.tar.gz", ledgerPath,
		map[string]string{"out.bin": "v1"})

	pc := &fakePrecompiler{
		build: func(ctx context.Context, cc CompilerConfig) error {
			t.Error("native build ran although restore succeeded")
			return nil
		},
	}
	o := newTestOrchestrator(t, pc, Options{
		CacheDir:   cacheDir,
		OutputDir:  outputDir,
		LedgerPath: ledgerPath,
	})

	if err := o.EnsureAvailable(context.Background()); err != nil {
		t.Fatalf("EnsureAvailable failed: %v", err)
	}
}

func TestEnsureAvailableFallsBackToBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	var builtWith CompilerConfig
	built := false
	pc := &fakePrecompiler{
		build: func(ctx context.Context, cc CompilerConfig) error {
			built = true
			builtWith = cc
			return nil
		},
	}
	o := newTestOrchestrator(t, pc, Options{
		URLTemplate: srv.URL + "/releases/@{artefact_filename}",
		Compiler:    CompilerConfig{CC: "clang"},
	})

	if err := o.EnsureAvailable(context.Background()); err != nil {
		t.Fatalf("EnsureAvailable failed: %v", err)
	}
	if !built {
		t.Fatal("native build did not run as the fallback")
	}
	if builtWith.CC != "clang" {
		t.Errorf("fallback build got compiler %+v, want CC=clang", builtWith)
	}
}

func TestEnsureAvailableIgnore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	pc := &fakePrecompiler{
		build: func(ctx context.Context, cc CompilerConfig) error {
			t.Error("native build ran although the hook declared the target ignored")
			return nil
		},
		hooks: Hooks{
			Unavailable: func(target string) Recovery {
				if target != "a-b-c" {
					t.Errorf("hook asked about %q, want a-b-c", target)
				}
				return RecoverIgnore
			},
		},
	}
	o := newTestOrchestrator(t, pc, Options{
		URLTemplate: srv.URL + "/releases/@{artefact_filename}",
	})

	if err := o.EnsureAvailable(context.Background()); err != nil {
		t.Fatalf("EnsureAvailable failed: %v", err)
	}
}

func TestRecoverDefault(t *testing.T) {
	o := newTestOrchestrator(t, &fakePrecompiler{}, Options{})
	if got := o.Recover("a-b-c"); got != RecoverCompile {
		t.Errorf("Recover without a hook = %v, want RecoverCompile", got)
	}
}
