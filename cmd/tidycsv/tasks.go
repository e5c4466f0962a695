package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the available cleaning tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GROUP\tKEY\tDESCRIPTION")
			for _, group := range core.Groups() {
				for _, def := range core.ByGroup(group) {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", group, def.Info.Key, def.Info.Description)
				}
			}
			return tw.Flush()
		},
	}
}
