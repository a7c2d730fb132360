package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gpmc-lab-ufrgs/atlas/internal/metrics"
	"github.com/gpmc-lab-ufrgs/atlas/internal/server"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/session"
)

// serveCommand creates the serve command exposing map views over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		load        loadOpts
		addr        string
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live map views over HTTP",
		Long: `Serve live map views over HTTP.

Each view owns one interaction engine. Clients create a view, post hover,
click and comparison events to it, and read back the selection state and the
map state the engine produced. Idle views expire after server.view_ttl.

Sending SIGHUP re-reads the map layers. States that were missing before are
added, and views holding a placeholder for such a state pick up the loaded
feature.

Prometheus metrics are exposed at /metrics unless --metrics=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), load, addr, withMetrics)
		},
	}

	load.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&withMetrics, "metrics", true, "expose Prometheus metrics at /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, load loadOpts, addr string, withMetrics bool) error {
	cat, cfg, err := c.loadCatalogue(ctx, load)
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	logger := loggerFromContext(ctx)

	if withMetrics {
		metrics.Register()
	}

	capacity := cfg.Comparison.Capacity
	views := session.NewRegistry(
		server.ViewFactory(cat, logger, engine.WithComparisonCapacity(capacity)),
		cfg.Server.ViewTTL.D(),
	)
	views.SetLogger(logger)
	defer views.Close()
	metrics.TrackViews(views.Len)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go views.Run(runCtx, cfg.Server.CleanupInterval.D())

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go c.reloadLayers(runCtx, hup, load, cat, views)

	srv := server.New(views, cat,
		server.WithLogger(logger),
		server.WithMetrics(withMetrics),
		server.WithComparisonCapacity(capacity),
	)

	printSuccess("Serving map views on %s", StyleLink.Render(baseURL(addr)))
	printNextStep("Create a view", "curl -X POST "+baseURL(addr)+"/views")
	return srv.ListenAndServe(ctx, addr, cfg.Server.ShutdownTimeout.D())
}

// reloadLayers merges a fresh catalogue into cat on every signal from hup.
func (c *CLI) reloadLayers(ctx context.Context, hup <-chan os.Signal, load loadOpts, cat *geodata.Catalogue, views *session.Registry) {
	logger := loggerFromContext(ctx).WithPrefix("reload")
	load.refresh = true
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		fresh, _, err := c.loadCatalogue(ctx, load)
		if err != nil {
			logger.Error("reload map layers", "error", err)
			continue
		}
		added := cat.Merge(fresh)
		changed := views.Reconcile(added...)
		logger.Info("map layers reloaded", "new_states", len(added), "views_updated", changed)
	}
}

// baseURL turns a listen address into a URL a local client can use.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
