// Package cli implements the atlas command-line interface.
//
// The commands load the configured state and district layers into a
// catalogue and drive interaction engines over it:
//   - serve: Expose live map views over HTTP
//   - explore: Drive one view interactively in the terminal
//   - replay: Run an event script through an engine and print the directives
//   - inspect: Summarize the loaded catalogue
//   - cache: Manage the dataset cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// attached to the command context and shared by the engines, sinks and the
// geodata loader.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/buildinfo"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/cache"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/config"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display and completions.
const appName = "atlas"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Atlas drives interactive state and district maps",
		Long: `Atlas keeps the hover, selection and comparison state of a two-level
administrative map (states and their districts) and tells the map what to do:
frame a feature, show or hide a layer, open or close a popup.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to atlas.toml")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration & Data
// =============================================================================

// config loads the configuration once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// newCache opens the configured dataset cache backend.
func newCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	default:
		return cache.NewFileCache(cfg.Cache.Dir)
	}
}

// loadOpts are the flags shared by commands that load the catalogue.
type loadOpts struct {
	states    string
	districts string
	noCache   bool
	refresh   bool
}

func (o *loadOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.states, "states", "", "state layer (GeoJSON file or URL); overrides data.states")
	cmd.Flags().StringVar(&o.districts, "districts", "", "district layer (GeoJSON file or URL); overrides data.districts")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "disable the dataset cache")
	cmd.Flags().BoolVar(&o.refresh, "refresh", false, "refetch remote layers even when cached")
}

// loadCatalogue reads the configured layers into a catalogue.
func (c *CLI) loadCatalogue(ctx context.Context, opts loadOpts) (*geodata.Catalogue, *config.Config, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	src := geodata.Sources{
		States:       cfg.Data.States,
		StateKeys:    cfg.Data.StateKeys,
		Districts:    cfg.Data.Districts,
		DistrictKeys: cfg.Data.DistrictKeys,
	}
	if opts.states != "" {
		src.States = opts.states
	}
	if opts.districts != "" {
		src.Districts = opts.districts
	}
	if src.States == "" {
		return nil, nil, fmt.Errorf("no state layer configured: set data.states, ATLAS_STATES or --states")
	}

	store, err := newCache(ctx, cfg, opts.noCache)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	spin := newSpinner("Loading map layers...")
	spin.start(ctx)

	client := geodata.NewClient(
		geodata.WithCache(store, cfg.Cache.TTL.D()),
		geodata.WithRefresh(opts.refresh),
		geodata.WithLogger(logger),
		geodata.WithProgress(func(level feature.Level, source string) {
			spin.update(fmt.Sprintf("Loading %s layer from %s...", level, filepath.Base(source)))
		}),
	)
	cat, err := client.LoadCatalogue(ctx, src)
	if err != nil {
		spin.fail("Loading map layers failed")
		return nil, nil, err
	}
	spin.stop()

	states, districts := cat.Len()
	prog.done(fmt.Sprintf("Loaded %d states and %d districts", states, districts))
	return cat, cfg, nil
}
