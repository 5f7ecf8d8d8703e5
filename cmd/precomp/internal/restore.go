package internal

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Make the precompiled native library available locally",
	Long: `Restore places the native library for the current host into the output
directory: it reuses a present build output, or downloads, verifies and
extracts the published artifact, or falls back to a source build per the
precompiler's recovery policy.`,
	Args: cobra.NoArgs,
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, orch, err := loadProject()
	if err != nil {
		return err
	}

	if err := orch.EnsureAvailable(context.Background()); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	fmt.Printf("%s is available\n", filepath.Join(cfg.OutputDir, cfg.LibName))
	return nil
}
