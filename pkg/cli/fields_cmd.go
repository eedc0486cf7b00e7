package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mqleval/internal/mql"
	"mqleval/internal/schema"
)

func newFieldsCmd() *cobra.Command {
	var (
		dbID      string
		schemaDir string
	)

	cmd := &cobra.Command{
		Use:   "fields <query>",
		Short: "Extract referenced field names from a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := mql.ParseQuery(args[0])
			if err != nil {
				return err
			}

			var fields []string
			if schemaDir != "" && dbID != "" {
				known, err := schema.NewStore(schemaDir).Fields(dbID)
				if err != nil {
					return err
				}
				fields = mql.ExtractFieldsSchema(q, known)
			} else {
				fields = mql.ExtractFields(q)
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]interface{}{
					"collection": q.Collection,
					"fields":     fields,
				})
			}
			_, _ = fmt.Fprintln(os.Stdout, strings.Join(fields, "\n"))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbID, "db", "", "Database id for schema-aware extraction")
	cmd.Flags().StringVar(&schemaDir, "schema-dir", os.Getenv("SCHEMA_DIR"), "Directory of per-database schema files")

	return cmd
}
