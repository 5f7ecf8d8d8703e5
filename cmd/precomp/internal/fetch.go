package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var fetchIgnoreUnavailable bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download every published artifact and record its checksum",
	Long: `Fetch downloads the published artifact archive for every target in the
project's matrix, for every published NIF version, into the cache
directory, and merges the checksums into the ledger. Run it after a
release and commit the updated ledger.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchIgnoreUnavailable, "ignore-unavailable", false,
		"Skip targets whose artifact is not published instead of aborting")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, orch, err := loadProject()
	if err != nil {
		return err
	}

	ignore := fetchIgnoreUnavailable || cfg.IgnoreUnavailable
	fetched, err := orch.FetchAll(context.Background(), ignore)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	for _, f := range fetched {
		fmt.Printf("%s  sha256:%s\n", f.Basename, f.Checksum)
	}
	return nil
}
