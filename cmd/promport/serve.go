package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/omarluq/promport"
	"github.com/omarluq/promport/cmd/promport/di"
)

// demoEventsPerSecond paces the demo workload counter so scrapes show motion
// even on an otherwise idle process.
const demoEventsPerSecond = 5

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metrics endpoint and collection loop",
	Long: `Start the scrape endpoint and the metric collection loop. The endpoint
follows the config file: edits are picked up by the file watcher, and SIGHUP
forces a reload from disk.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		return err
	}

	cfgSvc, err := di.Invoke[*di.ConfigService](container)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		return err
	}

	logSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		// Fallback to the default logger for error reporting
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	log.Logger = *logSvc.Logger
	zerolog.DefaultContextLogger = logSvc.Logger

	expSvc, err := di.Invoke[*di.ExporterService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to start metrics exporter")
		return err
	}

	collSvc := di.MustInvoke[*di.CollectorService](container)

	if err := expSvc.Writer.Spawn(collSvc.Collector.Collect); err != nil {
		log.Error().Err(err).Msg("failed to spawn metrics writer")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go collSvc.Collector.RunDemoWorkload(ctx, demoEventsPerSecond)

	// File edits reload the endpoint before the config swap is announced.
	cfgSvc.OnChange(func(newCfg *promport.Config) error {
		return expSvc.Exporter.Reload(newCfg)
	})
	cfgSvc.StartWatching(ctx)

	// SIGHUP forces a reload from disk, for setups without working file
	// notifications (some network mounts, container overlays).
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer func() {
		signal.Stop(hup)
		close(hup)
	}()
	go func() {
		for range hup {
			log.Info().Msg("received SIGHUP, reloading config")
			cfg, err := cfgSvc.Reload()
			if err != nil {
				log.Error().Err(err).Msg("failed to reload config")
				continue
			}
			if err := expSvc.Exporter.Reload(cfg); err != nil {
				log.Error().Err(err).Msg("failed to reload metrics exporter")
			}
		}
	}()

	cfg := cfgSvc.Get()
	log.Info().
		Str("listen", cfg.ListenAddress).
		Str("path", cfg.MetricsPath).
		Str("instance_id", collSvc.Collector.InstanceID()).
		Msg("starting promport")

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	if err := container.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		return err
	}

	log.Info().Msg("exporter stopped")
	return nil
}

// findConfigFile searches for promport.yaml in default locations.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	return findConfigInWithHome(".", home)
}

func findConfigIn(dir string) string {
	return findConfigInWithHome(dir, "")
}

func findConfigInWithHome(dir, home string) string {
	// Check the working directory first
	if p := filepath.Join(dir, defaultConfigFile); fileExists(p) {
		return p
	}
	// Then ~/.config/promport/
	if home != "" {
		if p := filepath.Join(home, ".config", "promport", defaultConfigFile); fileExists(p) {
			return p
		}
	}

	return defaultConfigFile // Default, will error if not found
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
