// Package cli implements the backsync command line.
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/backsync/internal/core/ports/driving"
	"github.com/custodia-labs/backsync/internal/logger"
)

// version is set at build time.
var version = "dev"

// Options are the global flags handed to the bootstrap function.
type Options struct {
	// ConfigDir overrides the configuration directory.
	ConfigDir string

	// Logger is the logger of the run.
	Logger *logger.Logger
}

// Services holds the ports the commands call.
type Services struct {
	Sync   driving.Synchronizer
	Source driving.SourceService

	// NewScheduler builds the background fetcher used by watch.
	NewScheduler func(interval time.Duration, onReport func(*driving.FetchReport, error), targets ...driving.FetchTarget) driving.Scheduler

	// WatchConfig reloads the configuration on change until ctx is done and
	// reports every reload. Optional.
	WatchConfig func(ctx context.Context) (<-chan error, error)

	// Close releases stores and bridges.
	Close func() error
}

// BootstrapFunc builds the services for one run.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	services  *Services
	bootstrap BootstrapFunc
	log       = logger.Nop()

	verbose   bool
	configDir string
)

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "backsync",
	Short: "Synchronise remote data services into local object stores",
	Long: `backsync fetches objects from remote data services into a local,
uniqued object graph and pushes local edits back.

Sources are configured in ~/.backsync/config.toml.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default ~/.backsync)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap sets the function building the services. It runs lazily
// before the first command that needs them.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	log = logger.New(cmd.ErrOrStderr(), verbose)
	if cmd.Annotations[skipBootstrap] != "" || services != nil || bootstrap == nil {
		return nil
	}

	built, err := bootstrap(cmd.Context(), Options{ConfigDir: configDir, Logger: log})
	if err != nil {
		return err
	}
	services = built
	return nil
}

func closeServices() {
	if services == nil || services.Close == nil {
		return
	}
	if err := services.Close(); err != nil {
		log.Warn("closing: %v", err)
	}
}

// watchConfig keeps the configuration current while a long-running command
// runs.
func watchConfig(cmd *cobra.Command) {
	if services == nil || services.WatchConfig == nil {
		return
	}
	reloads, err := services.WatchConfig(cmd.Context())
	if err != nil {
		log.Warn("configuration changes will not be picked up: %v", err)
		return
	}
	go func() {
		for err := range reloads {
			if err != nil {
				log.Warn("reloading configuration: %v", err)
				continue
			}
			log.Info("configuration reloaded")
		}
	}()
}

func syncService() (driving.Synchronizer, error) {
	if services == nil || services.Sync == nil {
		return nil, errors.New("sync service not configured")
	}
	return services.Sync, nil
}

func sourceService() (driving.SourceService, error) {
	if services == nil || services.Source == nil {
		return nil, errors.New("source service not configured")
	}
	return services.Source, nil
}
