package cmd

import (
	"fmt"
	"os"

	"ap-tools/core/config"
	"ap-tools/core/github"
	"ap-tools/feature/worlds"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var worldsCmd = &cobra.Command{
	Use:   "worlds",
	Short: "Manage custom .apworld packages",
	Long: `Keeps the custom_worlds directory in sync with the GitHub releases
declared in the manifest. 'check' refreshes the release listings, 'list'
shows where every world stands and 'update' downloads what is outdated.`,
	Args: cobra.ArbitraryArgs,
	RunE: runWorldsList,
}

var (
	worldsLong      bool
	worldsYes       bool
	worldsDryRun    bool
	worldsCustomDir string
)

func runWorldsList(cmd *cobra.Command, args []string) error {
	cfg, logg, err := bootstrap()
	if err != nil {
		return err
	}
	defer logg.Sync()

	svc, err := newWorldsService(cfg, logg)
	if err != nil {
		return err
	}
	rows, err := svc.Rows(args)
	if err != nil {
		return err
	}
	worlds.RenderTable(os.Stdout, rows, worldsLong)
	return nil
}

var worldsListCmd = &cobra.Command{
	Use:     "list [name]...",
	Aliases: []string{"ls"},
	Short:   "Show each world's version and update status",
	RunE:    runWorldsList,
}

var worldsCheckCmd = &cobra.Command{
	Use:   "check [name]...",
	Short: "Refresh release listings from GitHub and show the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()

		svc, err := newWorldsService(cfg, logg)
		if err != nil {
			return err
		}
		if err := svc.Check(cmd.Context(), args); err != nil {
			return err
		}
		rows, err := svc.Rows(args)
		if err != nil {
			return err
		}
		worlds.RenderTable(os.Stdout, rows, worldsLong)
		return nil
	},
}

var worldsUpdateCmd = &cobra.Command{
	Use:   "update [name]...",
	Short: "Download outdated worlds and clean up orphans",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()

		svc, err := newWorldsService(cfg, logg)
		if err != nil {
			return err
		}
		result, err := svc.Update(cmd.Context(), args)
		if err != nil {
			return err
		}
		if len(result.Orphans) == 0 {
			return nil
		}

		fmt.Println("files not listed in config:")
		for _, orphan := range result.Orphans {
			fmt.Println("  " + orphan)
		}
		if worldsDryRun {
			return nil
		}
		if !worldsYes && !confirm(fmt.Sprintf("delete %d file(s)?", len(result.Orphans))) {
			fmt.Println("keeping them")
			return nil
		}
		return svc.DeleteOrphans(result.Orphans)
	},
}

// resolveWorldsDir picks the directory the worlds commands operate on. An
// explicit location (flag or config) is created when absent; the default
// <repo>/custom_worlds has to exist already, since the Archipelago launcher
// owns it.
func resolveWorldsDir(cfg *config.Config) (string, error) {
	dir := cfg.Archipelago.CustomWorlds
	if worldsCustomDir != "" {
		dir = worldsCustomDir
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("cannot create %s: %w", dir, err)
		}
		return dir, nil
	}

	if err := requireRepo(cfg); err != nil {
		return "", err
	}
	dir = cfg.Archipelago.CustomWorldsDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s does not exist, run the Archipelago launcher once or pass --custom-worlds", dir)
	}
	return dir, nil
}

// newWorldsService wires the manifest, the sidecar cache and the GitHub
// client into a worlds service.
func newWorldsService(cfg *config.Config, logg *zap.Logger) (*worlds.Service, error) {
	manifest, err := worlds.LoadManifest(cfg.Worlds.Manifest)
	if err != nil {
		return nil, err
	}
	dir, err := resolveWorldsDir(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := worlds.OpenCache(dir, clockwork.NewRealClock())
	if err != nil {
		return nil, err
	}
	gh := github.NewClient(cfg.GitHub, logg)
	return worlds.NewService(manifest, cache, gh, cfg.Worlds.CacheTTL(), cfg.Worlds.CheckConcurrency, logg), nil
}

func init() {
	worldsCmd.PersistentFlags().StringVar(&worldsCustomDir, "custom-worlds", "", "operate on this directory instead of <repo>/custom_worlds")
	worldsCmd.Flags().BoolVarP(&worldsLong, "long", "l", false, "include size and check age columns")
	worldsListCmd.Flags().BoolVarP(&worldsLong, "long", "l", false, "include size and check age columns")
	worldsCheckCmd.Flags().BoolVarP(&worldsLong, "long", "l", false, "include size and check age columns")
	worldsUpdateCmd.Flags().BoolVarP(&worldsYes, "yes", "y", false, "delete orphaned files without asking")
	worldsUpdateCmd.Flags().BoolVar(&worldsDryRun, "dry-run", false, "only report orphaned files, never delete")

	worldsCmd.AddCommand(worldsListCmd)
	worldsCmd.AddCommand(worldsCheckCmd)
	worldsCmd.AddCommand(worldsUpdateCmd)
	RootCmd.AddCommand(worldsCmd)
}
