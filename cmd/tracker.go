package cmd

import (
	"ap-tools/core/config"
	"ap-tools/core/execx"
	"ap-tools/feature/tracker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Run the Cheese Tracker compose stack",
}

var (
	trackerFollow bool
	trackerTail   int
)

func newTrackerService(cfg *config.Config, logg *zap.Logger) *tracker.Service {
	return tracker.NewService(cfg.Tracker, execx.NewRunner(logg), logg)
}

var trackerUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the tracker stack detached",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		return newTrackerService(cfg, logg).Up(cmd.Context())
	},
}

var trackerDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the tracker stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		return newTrackerService(cfg, logg).Down(cmd.Context())
	},
}

var trackerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tracker stack's containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		return newTrackerService(cfg, logg).Status(cmd.Context())
	},
}

var trackerLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the tracker stack's logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := bootstrap()
		if err != nil {
			return err
		}
		defer logg.Sync()
		return newTrackerService(cfg, logg).Logs(cmd.Context(), tracker.LogsOptions{
			Follow: trackerFollow,
			Tail:   trackerTail,
		})
	},
}

func init() {
	trackerLogsCmd.Flags().BoolVarP(&trackerFollow, "follow", "f", false, "keep streaming new log lines")
	trackerLogsCmd.Flags().IntVar(&trackerTail, "tail", 0, "only show the last N lines per container")

	trackerCmd.AddCommand(trackerUpCmd)
	trackerCmd.AddCommand(trackerDownCmd)
	trackerCmd.AddCommand(trackerStatusCmd)
	trackerCmd.AddCommand(trackerLogsCmd)
	RootCmd.AddCommand(trackerCmd)
}
