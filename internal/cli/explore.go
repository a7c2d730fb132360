package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/sink"
)

// exploreCommand creates the interactive explorer.
func (c *CLI) exploreCommand() *cobra.Command {
	var load loadOpts

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Explore the map layers interactively in the terminal",
		Long: `Explore the map layers interactively in the terminal.

Moving the cursor hovers a state or district, enter selects it and esc goes
back up one level. The side panel shows the selection, the visible layers,
the popup and the camera that the engine's directives produced, and the
last directives issued. Press c on a district to toggle it in the
comparison set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, cfg, err := c.loadCatalogue(ctx, load)
			if err != nil {
				return fmt.Errorf("load catalogue: %w", err)
			}

			// Log lines would tear the alternate screen.
			logger := loggerFromContext(ctx).WithPrefix("explore")
			logger.SetLevel(log.WarnLevel)

			rec := sink.NewRecorder()
			vp := sink.NewViewport(
				orb.Point{cfg.Viewport.Center[0], cfg.Viewport.Center[1]},
				cfg.Viewport.Zoom,
				sink.WithGeometry(cat.Geometry),
				sink.WithPadding(cfg.Viewport.Padding),
				sink.WithViewportLogger(logger),
			)
			// Cursor scrolling hovers on every keypress; only the camera
			// position after the burst matters.
			settle := time.Duration(cfg.Debounce.Interval)
			deb := sink.NewDebouncer(engine.Sinks{Viewport: vp}, settle)
			defer deb.Close()

			eng := engine.New(
				engine.WithSinks(sink.Multi(rec.Sinks(), engine.Sinks{Viewport: deb})),
				engine.WithResolver(cat.Resolve),
				engine.WithLogger(logger),
				engine.WithComparisonCapacity(cfg.Comparison.Capacity),
			)
			defer eng.Close()

			model := NewExploreModel(ctx, eng, rec, vp, cat)
			model.Settle = settle
			if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("explore: %w", err)
			}

			snap := eng.Snapshot()
			if snap.Route != "" && len(snap.Comparison) > 0 {
				printSuccess("Comparison route %s", StyleHighlight.Render(snap.Route))
			}
			return nil
		},
	}

	load.register(cmd)
	return cmd
}
