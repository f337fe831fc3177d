package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/bridge-go-sdk/memory"
)

func newMemoryCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect today's memory for the configured owner",
	}
	cmd.AddCommand(
		newMemoryShowCmd(root),
		newMemoryRecallCmd(root),
		newMemoryVerifyCmd(root),
	)
	return cmd
}

// withMemory loads the app and the manager, failing when memory is disabled.
func withMemory(cmd *cobra.Command, root *rootFlags, fn func(m *memory.Manager) error) error {
	a, err := loadApp(root.configPath, root.logLevel)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.memory(cmd.Context())
	if err != nil {
		return err
	}
	if m == nil {
		return errors.New("memory is disabled (set memory.enabled: true)")
	}
	return fn(m)
}

func newMemoryShowCmd(root *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the memory context sent to agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMemory(cmd, root, func(m *memory.Manager) error {
				c := m.BuildContext()
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), c)
				}
				key := m.Key()
				if c.Empty() {
					fmt.Fprintf(cmd.OutOrStdout(), "No memory for %s on %s.\n", key.Owner, key.Day)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Owner %s, %s\n\n%s\n", key.Owner, key.Day, c.Format())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newMemoryRecallCmd(root *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recall <query...>",
		Short: "Search remembered interactions, including folded ones when an index is configured",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withMemory(cmd, root, func(m *memory.Manager) error {
				hits, err := m.Recall(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
					return nil
				}
				for _, it := range hits {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", it.Timestamp.Format(time.RFC3339), it.Role, it.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum results")
	return cmd
}

func newMemoryVerifyCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recompute every hash and check interaction counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMemory(cmd, root, func(m *memory.Manager) error {
				if err := m.Verify(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK: %d interactions, %d summaries, %d total\n",
					len(m.Interactions()), len(m.Summaries()), m.TotalCount())
				return nil
			})
		},
	}
}
