package main

import (
	"github.com/Carmen-Shannon/kaleido-go/engine/config"
	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. The persistent --config flag is shared by every subcommand.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "kaleido",
		Short:         "Real-time kaleidoscopic feedback visuals",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "run configuration file (TOML)")

	loadConfig := func() (config.Config, error) {
		return config.Load(configPath)
	}
	root.AddCommand(newRunCommand(loadConfig), newPresetsCommand(loadConfig))
	return root
}
