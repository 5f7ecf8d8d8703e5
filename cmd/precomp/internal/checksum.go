package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nifforge/precomp/internal/checksum"
	"github.com/nifforge/precomp/internal/env"
	"github.com/nifforge/precomp/internal/precompile"
	"github.com/nifforge/precomp/internal/target"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum",
	Short: "Verify the cached artifact for the current host",
	Long: `Checksum verifies the cached artifact archive for the current host's
target against the committed ledger and reports the result.`,
	Args: cobra.NoArgs,
	RunE: runChecksum,
}

func init() {
	rootCmd.AddCommand(checksumCmd)
}

func runChecksum(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadProject()
	if err != nil {
		return err
	}

	cur, err := target.Current()
	if err != nil {
		return err
	}
	nifVersion, err := precompile.BestNIFVersion(cfg.NIFVersion, cfg.NIFVersions)
	if err != nil {
		return err
	}
	basename := precompile.ArtifactBasename(cfg.App, nifVersion, cur, cfg.Version)

	cacheDir, err := env.CacheDir()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(cacheDir, basename))
	if err != nil {
		return fmt.Errorf("no cached artifact for %s: %w", cur, err)
	}

	ledger, err := checksum.Load(cfg.LedgerFile)
	if err != nil {
		return err
	}
	if err := ledger.Verify(basename, checksum.Algorithm, data); err != nil {
		return err
	}
	fmt.Printf("%s  sha256:%s  OK\n", basename, checksum.Sum(data))
	return nil
}
