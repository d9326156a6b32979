package cmd

import (
	"fmt"
	"path/filepath"

	"ap-tools/core/config"
	"ap-tools/feature/hostyaml"

	"github.com/spf13/cobra"
)

var hostYamlCmd = &cobra.Command{
	Use:   "host-yaml",
	Short: "Inspect and edit the server's host.yaml",
	Long: `Reads and edits {repo}/host.yaml through its yaml node tree, so the
file keeps its comments and ordering. Keys are dotted paths, for example
general_options.output_path.`,
}

func hostYamlEditor(cfg *config.Config) *hostyaml.Editor {
	return hostyaml.NewEditor(filepath.Join(cfg.Archipelago.Repo, hostyaml.FileName))
}

var hostYamlListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "Print settings as flattened key: value lines",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		if err := requireRepo(cfg); err != nil {
			return err
		}

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		entries, err := hostYamlEditor(cfg).List(prefix)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Printf("%s: %s\n", entry.Key, entry.Value)
		}
		return nil
	},
}

var hostYamlGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one value as yaml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		if err := requireRepo(cfg); err != nil {
			return err
		}

		value, err := hostYamlEditor(cfg).Get(args[0])
		if err != nil {
			return err
		}
		fmt.Print(value)
		return nil
	},
}

var hostYamlSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one value, parsed as a yaml scalar",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		if err := requireRepo(cfg); err != nil {
			return err
		}

		return hostYamlEditor(cfg).Set(args[0], args[1])
	},
}

var hostYamlUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove one key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		if err := requireRepo(cfg); err != nil {
			return err
		}

		return hostYamlEditor(cfg).Unset(args[0])
	},
}

func init() {
	hostYamlCmd.AddCommand(hostYamlListCmd)
	hostYamlCmd.AddCommand(hostYamlGetCmd)
	hostYamlCmd.AddCommand(hostYamlSetCmd)
	hostYamlCmd.AddCommand(hostYamlUnsetCmd)
	RootCmd.AddCommand(hostYamlCmd)
}
