// Command zvec is the operator CLI for the engine core: it drives WAL
// inspection, IVF index builds and searches, and quantizer calibration
// directly against the on-disk formats implemented under internal/ and
// pkg/, without going through a network service surface.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zvecio/zvec/pkg/config"
	"github.com/zvecio/zvec/pkg/observability"
)

var (
	cfgDataDir string
	logger     *observability.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "zvec",
		Short: "Operate the zvec IVF engine core from the command line",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = observability.NewDefaultLogger().WithField("request_id", uuid.New().String())
		},
	}
	root.PersistentFlags().StringVar(&cfgDataDir, "data-dir", "", "override ZVEC_DATA_DIR for this invocation")

	root.AddCommand(newWALCmd(), newIVFCmd(), newQuantizeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves engine configuration the same way a long-running
// server would: environment first, --data-dir as a one-off override.
func loadConfig() *config.Config {
	cfg := config.LoadFromEnv()
	if cfgDataDir != "" {
		cfg.Storage.DataDir = cfgDataDir
	}
	return cfg
}
