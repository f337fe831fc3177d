package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "futureself",
		Short:         "Run self-aware agents with rolling memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: ./futureself.yaml or ./configs/futureself.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newAskCmd(flags),
		newBatchCmd(flags),
		newMemoryCmd(flags),
		newAgentsCmd(),
	)
	return root
}
