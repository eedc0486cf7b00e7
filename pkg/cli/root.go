// Package cli implements the mqleval command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]interface{}{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		output   string
		logLevel string
		profile  string
		envFile  string
	)

	rootCmd := &cobra.Command{
		Use:           "mqleval",
		Short:         "MQL query evaluation engine",
		Long:          "Scores predicted MongoDB-style queries against gold queries across six metrics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			// Config file is optional
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{
					CurrentProfile: "default",
					Profiles:       map[string]Profile{},
				}
			}
			p := cfg.ActiveProfile(profile)

			// Precedence: flag > env > profile > default
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("MQLEVAL_OUTPUT"); v != "" {
					output = v
				} else if p.Output != "" {
					output = p.Output
				}
			}
			if !cmd.Flags().Changed("log-level") {
				if v := os.Getenv("LOG_LEVEL"); v != "" {
					logLevel = v
				} else if p.LogLevel != "" {
					logLevel = p.LogLevel
				}
			}
			if v := p.MongoURI; v != "" && os.Getenv("MONGO_URI") == "" {
				_ = os.Setenv("MONGO_URI", v)
			}
			if v := p.MongoshPath; v != "" && os.Getenv("MONGOSH_PATH") == "" {
				_ = os.Setenv("MONGOSH_PATH", v)
			}
			if v := p.SchemaDir; v != "" && os.Getenv("SCHEMA_DIR") == "" {
				_ = os.Setenv("SCHEMA_DIR", v)
			}

			if err := validateOutputFormat(output); err != nil {
				return err
			}
			slog.SetDefault(newLogger(logLevel))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")

	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newFieldsCmd())
	rootCmd.AddCommand(newStagesCmd())
	rootCmd.AddCommand(newExecCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
