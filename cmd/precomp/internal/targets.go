package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nifforge/precomp/internal/precompile"
)

var targetsFetch bool

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the targets this project supports",
	Long: `Targets lists the target triplets this machine can build for. With
--fetch it lists the full published target matrix instead.`,
	Args: cobra.NoArgs,
	RunE: runTargets,
}

func init() {
	targetsCmd.Flags().BoolVar(&targetsFetch, "fetch", false, "List the full published target matrix")
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	_, orch, err := loadProject()
	if err != nil {
		return err
	}

	op := precompile.Compile
	if targetsFetch {
		op = precompile.Fetch
	}
	targets, err := orch.Targets(op)
	if err != nil {
		return err
	}
	for _, tgt := range targets {
		fmt.Println(tgt)
	}
	return nil
}
