package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	// Registers the presence topics with the default manager.
	_ "github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/topicmgr"
	"github.com/spf13/cobra"
)

var (
	topicsFormat string
	topicsModule string
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the event bus topics",
	Long: `List every topic registered on the event bus, in table or JSON format.

Examples:
  collabhub topics
  collabhub topics --module presence
  collabhub topics --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := topicmgr.Default()
		topics := manager.List()
		if topicsModule != "" {
			topics = manager.ListByModule(topicsModule)
		}

		out := cmd.OutOrStdout()
		switch topicsFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(topics)
		case "table":
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSCOPE\tMODULE\tPAYLOAD\tDESCRIPTION")
			for _, t := range topics {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.Scope, t.Module, strings.Join(t.PayloadFields, ","), t.Description)
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown format %q (want table or json)", topicsFormat)
		}
	},
}

func init() {
	topicsCmd.Flags().StringVarP(&topicsFormat, "format", "f", "table", "output format: table or json")
	topicsCmd.Flags().StringVarP(&topicsModule, "module", "m", "", "show only topics owned by this module")
	rootCmd.AddCommand(topicsCmd)
}
