package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/harun/mcplink/pkg/agent"
	"github.com/spf13/cobra"
)

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List the built-in chat variants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := agent.NewDefaultRegistry(agent.RegistryConfig{})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tDEFAULT MODEL\tDESCRIPTION")
		for _, v := range registry.Variants() {
			info := v.Info()
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.ID, info.Name, info.Version, v.Provider.DefaultConfig().Model, info.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(variantsCmd)
}
