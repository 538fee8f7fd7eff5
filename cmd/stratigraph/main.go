package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/stratigraph/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitParadox = 2
)

// errParadox is returned by commands whose subject failed validation. The
// result has already been printed.
var errParadox = errors.New("paradox found")

// Global flags and the configuration they resolve to.
var (
	configDir   string
	datasetFlag string
	logLevel    string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "stratigraph",
		Short:         "Check stratigraphic relations for temporal paradoxes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if datasetFlag != "" {
				loaded.Store.Dataset = datasetFlag
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			cfg = loaded
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding stratigraph.yml/.toml and .env")
	rootCmd.PersistentFlags().StringVar(&datasetFlag, "dataset", "", "YAML site file to load (overrides store.dataset)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	rootCmd.AddCommand(
		validateCmd,
		proposeCmd,
		commitCmd,
		deleteCmd,
		auditCmd,
		diagramCmd,
		batchCmd,
		serveCmd,
		engineCmd,
	)
}

func main() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errParadox):
		return exitParadox
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
}
