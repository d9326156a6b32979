package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"ap-tools/core/loader"
	"ap-tools/core/server"
	"ap-tools/core/storage"
	"ap-tools/feature/expose"
	"ap-tools/feature/seeds"
	"ap-tools/feature/worlds"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exposeCmd represents the expose command
var exposeCmd = &cobra.Command{
	Use:   "expose",
	Short: "Expose the running Archipelago server over TLS",
	Long: `Runs a TLS-terminating TCP proxy (and optionally a plaintext one) in
front of the Archipelago server, plus a local status API with the proxy
status, the world listing and the seed archive.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logg, err := bootstrap()
		if err != nil {
			zap.L().Fatal("Failed to start", zap.Error(err))
		}
		defer logg.Sync()

		// 1. Start the proxy listeners
		proxy, err := expose.NewProxy(cfg.Expose, logg)
		if err != nil {
			logg.Fatal("Failed to configure the proxy", zap.Error(err))
		}
		if err := proxy.Start(); err != nil {
			logg.Fatal("Failed to start the proxy", zap.Error(err))
		}

		// 2. Build the status API around it
		app := server.New(cfg.Status, logg)
		mgr := loader.NewManager()
		mgr.Register(expose.NewFeature(proxy))

		// The worlds and seeds listings are read-only and handy to have
		// while the server runs, but the proxy must come up even when
		// their backends are missing.
		if worldsSvc, err := newWorldsService(cfg, logg); err != nil {
			logg.Warn("Worlds listing disabled", zap.Error(err))
		} else {
			mgr.Register(worlds.NewFeature(worldsSvc))
		}
		if store, err := storage.NewClient(cfg.Storage); err != nil {
			logg.Warn("Seed archive disabled", zap.Error(err))
		} else {
			mgr.Register(seeds.NewFeature(seeds.NewService(cfg.Storage, store, logg)))
		}

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 3. Serve
		go func() {
			logg.Info("Starting status API", zap.String("listen", cfg.Status.Listen))
			if err := app.Listen(cfg.Status.Listen); err != nil {
				logg.Fatal("Status API failed to start", zap.Error(err))
			}
		}()

		// 4. Graceful shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down...")
		proxy.Shutdown()
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(exposeCmd)
}
