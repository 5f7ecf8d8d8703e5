package internal

import (
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/nifforge/precomp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "precomp",
	Short: "precomp manages precompiled native-library artifacts",
	Long: `precomp builds, fetches, verifies and restores precompiled native-library
artifacts, so consuming machines can skip local compilation.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFile, "Project configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
