package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var precompileCmd = &cobra.Command{
	Use:   "precompile",
	Short: "Build, archive and checksum every buildable target",
	Long: `Precompile builds the native library for every target this machine has a
toolchain for, packages each build output into the artifact cache, and
records the archive checksums in the ledger.`,
	Args: cobra.NoArgs,
	RunE: runPrecompile,
}

func init() {
	rootCmd.AddCommand(precompileCmd)
}

func runPrecompile(cmd *cobra.Command, args []string) error {
	_, orch, err := loadProject()
	if err != nil {
		return err
	}

	artifacts, err := orch.Run(context.Background())
	if err != nil {
		return fmt.Errorf("precompile failed: %w", err)
	}
	for _, a := range artifacts {
		fmt.Printf("%s  %s:%s\n", a.Basename, a.Algorithm, a.Checksum)
	}
	return nil
}
