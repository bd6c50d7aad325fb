package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/harunnryd/tarjama/pkg/languages"
)

func NewLanguagesCmd(deps *Dependencies) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the languages advertised over get/languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				payload, err := languages.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), payload)
				return nil
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Code", "Name", "Flag"})
			table.SetBorder(false)
			table.SetAutoWrapText(false)
			for _, l := range languages.All() {
				table.Append([]string{l.Code, l.Name, l.Flag})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the RPC payload instead of a table")
	return cmd
}
