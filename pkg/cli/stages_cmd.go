package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mqleval/internal/mql"
)

func newStagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages <query>",
		Short: "Extract the ordered stage-token list from a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := mql.ParseQuery(args[0])
			if err != nil {
				return err
			}
			stages := mql.ExtractStages(q)

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]interface{}{
					"collection": q.Collection,
					"stages":     stages,
				})
			}
			_, _ = fmt.Fprintln(os.Stdout, strings.Join(stages, " "))
			return nil
		},
	}
	return cmd
}
