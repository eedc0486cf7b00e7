package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mqleval/internal/config"
	"mqleval/internal/mql"
)

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <db> <query>",
		Short: "Execute a query and print the result documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbID, query := args[0], args[1]

			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			logger := slog.Default()
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			runner, cleanup, err := buildRunner(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			docs, err := runner.Run(cmd.Context(), dbID, query)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				rendered := make([]interface{}, 0, len(docs))
				for _, d := range docs {
					rendered = append(rendered, mql.Interface(d))
				}
				return printJSON(os.Stdout, rendered)
			}
			for _, d := range docs {
				_, _ = fmt.Fprintln(os.Stdout, mql.Encode(d))
			}
			return nil
		},
	}
	return cmd
}
