package di

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/omarluq/promport"
)

// ConfigService wraps the loaded configuration with hot-reload support.
// It uses atomic.Pointer for lock-free config reads; readers always see a
// complete config, before or after a reload but never a mix.
type ConfigService struct {
	config  atomic.Pointer[promport.Config]
	watcher *promport.ConfigWatcher
	path    string
}

// Get returns the current configuration via atomic load.
func (c *ConfigService) Get() *promport.Config {
	return c.config.Load()
}

// Path returns the config file path the service loads from.
func (c *ConfigService) Path() string {
	return c.path
}

// OnChange registers a callback invoked with each successfully reloaded
// config. No-op when the file watcher is unavailable.
func (c *ConfigService) OnChange(cb promport.ReloadCallback) {
	if c.watcher != nil {
		c.watcher.OnChange(cb)
	}
}

// Reload re-reads and validates the config file, stores the result, and
// returns it. Used by signal-driven reloads; file-driven reloads go through
// the watcher instead.
func (c *ConfigService) Reload() (*promport.Config, error) {
	cfg, err := promport.LoadConfig(c.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.config.Store(cfg)
	return cfg, nil
}

// StartWatching begins watching the config file for changes. It registers
// the atomic swap callback and runs the watcher until ctx is canceled.
// Call after the container is fully initialized and after any OnChange
// registrations that should run before the swap.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	c.watcher.OnChange(func(newCfg *promport.Config) error {
		c.config.Store(newCfg)
		log.Info().Str("path", c.path).Msg("config hot-reloaded successfully")
		return nil
	})

	go func() {
		if err := c.watcher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// Shutdown implements do.Shutdowner for graceful watcher cleanup.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// NewConfig loads and validates the configuration from the config path and
// creates a watcher. The watcher is created but not started; call
// StartWatching after container init.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := promport.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	svc := &ConfigService{
		path: path,
	}
	svc.config.Store(cfg)

	// Hot reload is optional: a watcher failure downgrades to static config.
	watcher, err := promport.NewConfigWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}
