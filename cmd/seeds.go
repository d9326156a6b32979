package cmd

import (
	"fmt"
	"os"

	"ap-tools/core/config"
	"ap-tools/core/storage"
	"ap-tools/feature/seeds"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedsCmd = &cobra.Command{
	Use:   "seeds",
	Short: "Archive generated seeds in object storage",
}

var (
	seedsName   string
	seedsOutput string
	seedsKeep   int
	seedsYes    bool
	seedsDryRun bool
)

func newSeedsService(cfg *config.Config, logg *zap.Logger) (*seeds.Service, error) {
	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return seeds.NewService(cfg.Storage, client, logg), nil
}

var seedsPublishCmd = &cobra.Command{
	Use:   "publish <zip>",
	Short: "Upload a generated seed zip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()

		svc, err := newSeedsService(cfg, logg)
		if err != nil {
			return err
		}
		name, err := svc.Publish(cmd.Context(), args[0], seedsName)
		if err != nil {
			return err
		}
		fmt.Println("published: " + name)
		return nil
	},
}

var seedsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the archived seeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()

		svc, err := newSeedsService(cfg, logg)
		if err != nil {
			return err
		}
		listed, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		seeds.RenderTable(os.Stdout, listed)
		return nil
	},
}

var seedsFetchCmd = &cobra.Command{
	Use:   "fetch <name>",
	Short: "Download an archived seed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()

		svc, err := newSeedsService(cfg, logg)
		if err != nil {
			return err
		}
		return svc.Fetch(cmd.Context(), args[0], seedsOutput)
	},
}

var seedsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest seeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()

		svc, err := newSeedsService(cfg, logg)
		if err != nil {
			return err
		}
		victims, err := svc.Prune(cmd.Context(), seedsKeep)
		if err != nil {
			return err
		}
		if len(victims) == 0 {
			fmt.Println("nothing to prune")
			return nil
		}

		fmt.Printf("seeds beyond the newest %d:\n", seedsKeep)
		for _, victim := range victims {
			fmt.Println("  " + victim.Name)
		}
		if seedsDryRun {
			return nil
		}
		if !seedsYes && !confirm(fmt.Sprintf("delete %d seed(s)?", len(victims))) {
			fmt.Println("keeping them")
			return nil
		}
		return svc.DeleteSeeds(cmd.Context(), victims)
	},
}

func init() {
	seedsPublishCmd.Flags().StringVar(&seedsName, "name", "", "store under this name instead of the file's basename")
	seedsFetchCmd.Flags().StringVarP(&seedsOutput, "output", "o", "", "path to write the seed zip to")
	seedsFetchCmd.MarkFlagRequired("output")
	seedsPruneCmd.Flags().IntVar(&seedsKeep, "keep", 10, "how many of the newest seeds to keep")
	seedsPruneCmd.Flags().BoolVarP(&seedsYes, "yes", "y", false, "delete without asking")
	seedsPruneCmd.Flags().BoolVar(&seedsDryRun, "dry-run", false, "only report what would be deleted")

	seedsCmd.AddCommand(seedsPublishCmd)
	seedsCmd.AddCommand(seedsListCmd)
	seedsCmd.AddCommand(seedsFetchCmd)
	seedsCmd.AddCommand(seedsPruneCmd)
	RootCmd.AddCommand(seedsCmd)
}
