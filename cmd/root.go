// Package cmd is the botgate command line.
package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "botgate",
		Short:         "botgate: chat bots behind a reverse websocket gateway",
		Long:          "botgate accepts reverse websocket connections from a OneBot style gateway and runs plugins for one or more bots on them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default botgate.toml in . or $HOME/.config/botgate)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(&configPath),
		newConfigCmd(),
	)

	return rootCmd
}
