// Command pluginhost is a development harness wiring the plugin runtime
// against an in-memory host-services stub, a sqlite-backed scoped storage
// layer, and the read-only devtools inspector. It exists to exercise the
// runtime end to end; a real host application embeds internal/plugins the
// same way, swapping hostservices.NewDemo() for its real player/library.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waveform-labs/pluginhost/internal/config"
	"github.com/waveform-labs/pluginhost/internal/devtools"
	"github.com/waveform-labs/pluginhost/internal/hostservices"
	"github.com/waveform-labs/pluginhost/internal/logger"
	"github.com/waveform-labs/pluginhost/internal/manifest"
	"github.com/waveform-labs/pluginhost/internal/plugins"
	"github.com/waveform-labs/pluginhost/internal/storedb"
)

func main() {
	configPath := os.Getenv("PLUGINHOST_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	db, err := storedb.Open(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed opening storage database")
	}
	defer db.Close()
	if err := plugins.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed creating storage table")
	}

	host := hostservices.NewDemo()

	onError := func(pluginName string, err error) {
		log.Warn().Str("plugin", pluginName).Err(err).Msg("plugin lifecycle hook failed")
	}

	runtime := plugins.NewRuntime(cfg, host, db, onError)

	if err := runtime.StartSweeper(cfg.SweepCronExpr); err != nil {
		log.Fatal().Err(err).Msg("failed starting detached-resource sweeper")
	}
	defer runtime.StopSweeper()

	manifests, err := manifest.Discover(cfg.PluginDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed discovering plugins")
	}
	for _, m := range manifests {
		if err := runtime.LoadPlugin(m); err != nil {
			log.Warn().Str("plugin", m.Name).Err(err).Msg("failed loading plugin")
			continue
		}
		if err := runtime.EnablePlugin(m.Name); err != nil {
			log.Warn().Str("plugin", m.Name).Err(err).Msg("failed enabling plugin")
		}
	}
	log.Info().Int("loaded", len(runtime.List())).Msg("plugin discovery complete")

	var devtoolsServer *http.Server
	if cfg.Devtools.Enabled {
		inspector := devtools.NewServer(runtime)
		devtoolsServer = &http.Server{
			Addr:              cfg.Devtools.Addr,
			Handler:           inspector.Engine(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Devtools.Addr).Msg("devtools inspector listening")
			if err := devtoolsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("devtools server stopped unexpectedly")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	if devtoolsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := devtoolsServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("devtools server forced shutdown")
		}
	}

	for _, name := range runtime.List() {
		runtime.UnloadPlugin(name)
	}
}
