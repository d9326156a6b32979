package cmd

import (
	"ap-tools/core/execx"
	"ap-tools/feature/checkout"

	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage the Archipelago source checkout",
}

var repoUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fast-forward the checkout and reinitialize it",
	Long: `Fetches and fast-forwards the Archipelago checkout to its upstream,
then runs init. Refuses to touch a checkout with local modifications.`,
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
		return svc.Update(cmd.Context())
	},
}

var repoInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the venv and install the repo's requirements",
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
		return svc.Init(cmd.Context())
	},
}

func init() {
	repoCmd.AddCommand(repoUpdateCmd)
	repoCmd.AddCommand(repoInitCmd)
	RootCmd.AddCommand(repoCmd)
}
