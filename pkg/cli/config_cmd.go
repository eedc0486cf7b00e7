package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetProfileCmd())
	cmd.AddCommand(newConfigUseProfileCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "No configuration found at %s\n", ConfigPath())
				return err
			}
			if !reveal {
				cfg = maskConfig(cfg)
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, _ = fmt.Fprint(os.Stdout, string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show connection credentials unmasked")

	return cmd
}

// maskConfig returns a copy of the config with connection credentials masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := &UserConfig{
		CurrentProfile: cfg.CurrentProfile,
		Profiles:       make(map[string]Profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		p.MongoURI = maskURI(p.MongoURI)
		masked.Profiles[name] = p
	}
	return masked
}

// maskURI hides the userinfo portion of a connection string.
func maskURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at < 0 {
		return uri
	}
	scheme := ""
	rest := uri
	if i := strings.Index(uri, "://"); i >= 0 {
		scheme, rest = uri[:i+3], uri[i+3:]
		at -= i + 3
	}
	return scheme + "****" + rest[at:]
}

func newConfigSetProfileCmd() *cobra.Command {
	var (
		name        string
		mongoURI    string
		mongoshPath string
		schemaDir   string
		output      string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "set-profile",
		Short: "Create or update a configuration profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if cmd.Flags().Changed("format") {
				if err := validateOutputFormat(output); err != nil {
					return err
				}
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{
					CurrentProfile: "default",
					Profiles:       map[string]Profile{},
				}
			}

			p := cfg.Profiles[name]
			if cmd.Flags().Changed("mongo-uri") {
				p.MongoURI = mongoURI
			}
			if cmd.Flags().Changed("mongosh-path") {
				p.MongoshPath = mongoshPath
			}
			if cmd.Flags().Changed("schema-dir") {
				p.SchemaDir = schemaDir
			}
			if cmd.Flags().Changed("format") {
				p.Output = output
			}
			if cmd.Flags().Changed("level") {
				p.LogLevel = logLevel
			}
			cfg.Profiles[name] = p

			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]string{
					"status":  "ok",
					"profile": name,
					"path":    ConfigPath(),
				})
			}
			_, _ = fmt.Fprintf(os.Stdout, "Profile %q saved to %s\n", name, ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile name")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "Connection string for the native path")
	cmd.Flags().StringVar(&mongoshPath, "mongosh-path", "", "Path to the mongosh executable")
	cmd.Flags().StringVar(&schemaDir, "schema-dir", "", "Directory of per-database schema files")
	cmd.Flags().StringVar(&output, "format", "", "Default output format (text, json)")
	cmd.Flags().StringVar(&logLevel, "level", "", "Default log level")

	return cmd
}

func newConfigUseProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Switch the active configuration profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no configuration found at %s", ConfigPath())
			}
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q does not exist", name)
			}
			cfg.CurrentProfile = name
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]string{
					"status":  "ok",
					"profile": name,
				})
			}
			_, _ = fmt.Fprintf(os.Stdout, "Switched to profile %q\n", name)
			return nil
		},
	}
	return cmd
}
