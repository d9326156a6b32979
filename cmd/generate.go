package cmd

import (
	"ap-tools/core/execx"
	"ap-tools/feature/checkout"

	"github.com/spf13/cobra"
)

var (
	generateOutputZip string
	generateOutputDir string
	generateSeed      int64
)

var generateCmd = &cobra.Command{
	Use:   "generate <player-yaml>...",
	Short: "Generate a seed from player yaml files",
	Long: `Runs the repo's Generate.py against the given player yaml files. The
result lands either as the zip itself (--output-zip) or unpacked into an
empty directory (--output-dir).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		if err := requireRepo(cfg); err != nil {
			return err
		}

		svc := checkout.NewService(cfg.Archipelago, execx.NewRunner(logg), logg)
		return svc.Generate(cmd.Context(), checkout.GenerateOptions{
			OutputZip:   generateOutputZip,
			OutputDir:   generateOutputDir,
			Seed:        generateSeed,
			PlayerYAMLs: args,
		})
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateOutputZip, "output-zip", "", "write the generated seed zip to this path")
	generateCmd.Flags().StringVar(&generateOutputDir, "output-dir", "", "unpack the generated seed into this empty directory")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", -1, "fixed generation seed, -1 picks one")
	RootCmd.AddCommand(generateCmd)
}
