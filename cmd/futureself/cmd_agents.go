package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List known agent types and their endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tENDPOINT")
			for _, a := range core.AgentTypes() {
				fmt.Fprintf(w, "%s\t%s\n", a, a.Endpoint())
			}
			return w.Flush()
		},
	}
}
