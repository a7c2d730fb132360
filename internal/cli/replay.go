package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/config"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/sink"
)

const replayHelp = `Replay an interaction script against the loaded map layers.

Each non-empty line is one event; "#" starts a comment. Positions are
optional and written as @lng,lat.

  hover state RS @-53.2,-29.7     hover a feature
  leave district                  clear the hover of a layer
  click district 4314902          click a feature (selects it)
  click                           click empty map (resets everything)
  select state SC                 select without a click popup
  select district -               deselect the district
  reset                           reset the whole view
  compare 4314902                 toggle a district in the comparison
  add 4314902 / remove 4314902    add or remove explicitly

Every event prints the directives the engine issued to the viewport, layer
and popup sinks, followed by any status it reported.`

// step is one parsed line of a replay script.
type step struct {
	Line     int              `json:"line"`
	Text     string           `json:"text"`
	Kind     string           `json:"kind"`
	Level    feature.Level    `json:"level,omitempty"`
	ID       string           `json:"id,omitempty"`
	Position *engine.Position `json:"position,omitempty"`
}

// replayCommand creates the replay command.
func (c *CLI) replayCommand() *cobra.Command {
	var (
		load   loadOpts
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "replay [script|-]",
		Short: "Run an event script through an engine and print the directives",
		Long:  replayHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := readScript(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return c.runReplay(cmd.Context(), load, steps, asJSON, cmd.OutOrStdout())
		},
	}

	load.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON result per event")

	return cmd
}

func readScript(path string, stdin io.Reader) ([]step, error) {
	if path == "-" {
		return parseScript(stdin)
	}
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return parseScript(f)
}

func (c *CLI) runReplay(ctx context.Context, load loadOpts, steps []step, asJSON bool, out io.Writer) error {
	cat, cfg, err := c.loadCatalogue(ctx, load)
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}
	r := newReplayer(cat, cfg, loggerFromContext(ctx))
	defer r.close()

	enc := json.NewEncoder(out)
	for _, s := range steps {
		res, err := r.run(ctx, s)
		if err != nil {
			return fmt.Errorf("line %d: %w", s.Line, err)
		}
		if asJSON {
			if err := enc.Encode(struct {
				Step   step          `json:"step"`
				Result engine.Result `json:"result"`
			}{s, res}); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, StyleDim.Render(fmt.Sprintf("%3d", s.Line))+" "+StyleTitle.Render(s.Text))
		for _, d := range res.Directives {
			fmt.Fprintln(out, "    "+styleDirective(d))
		}
		if !res.OK() {
			fmt.Fprintln(out, "    "+StyleWarning.Render(fmt.Sprintf("%s %s: %s", iconWarning, res.Status, res.Message)))
		}
	}
	if asJSON {
		return nil
	}

	snap := r.eng.Snapshot()
	cam := r.viewport.Camera()
	fmt.Fprintln(out)
	fprintKeyValue(out, "state", formatFeature(snap.State.Selected))
	fprintKeyValue(out, "district", formatFeature(snap.District.Selected))
	fprintKeyValue(out, "comparison", snap.Route)
	fprintKeyValue(out, "camera", fmt.Sprintf("%.3f, %.3f z%.1f", cam.Center.Lon(), cam.Center.Lat(), cam.Zoom))
	return nil
}

// replayer drives one engine whose directives land in a recorder and in a
// geometry-aware viewport.
type replayer struct {
	eng      *engine.Engine
	recorder *sink.Recorder
	viewport *sink.Viewport
	cat      *geodata.Catalogue
}

func newReplayer(cat *geodata.Catalogue, cfg *config.Config, logger *log.Logger) *replayer {
	rec := sink.NewRecorder()
	vp := sink.NewViewport(
		orb.Point{cfg.Viewport.Center[0], cfg.Viewport.Center[1]},
		cfg.Viewport.Zoom,
		sink.WithGeometry(cat.Geometry),
		sink.WithPadding(cfg.Viewport.Padding),
		sink.WithViewportLogger(logger),
	)
	eng := engine.New(
		engine.WithSinks(sink.Multi(rec.Sinks(), engine.Sinks{Viewport: vp}, sink.NewLog(logger))),
		engine.WithResolver(cat.Resolve),
		engine.WithLogger(logger),
		engine.WithComparisonCapacity(cfg.Comparison.Capacity),
	)
	return &replayer{eng: eng, recorder: rec, viewport: vp, cat: cat}
}

func (r *replayer) run(ctx context.Context, s step) (engine.Result, error) {
	var f *feature.Feature
	if s.ID != "" && s.ID != "-" {
		var err error
		if f, err = r.cat.Lookup(s.Level, s.ID); err != nil {
			return engine.Result{}, err
		}
	}
	switch kind := engine.MapEventKind(s.Kind); kind {
	case engine.MapHover, engine.MapClick, engine.MapLeave:
		return r.eng.HandleMapEvent(ctx, engine.MapEvent{Kind: kind, Level: s.Level, Feature: f, Position: s.Position}), nil
	}
	return r.eng.Dispatch(ctx, engine.Event{Kind: engine.EventKind(s.Kind), Feature: f, Position: s.Position}), nil
}

func (r *replayer) close() {
	_ = r.eng.Close()
}

// parseScript reads replay steps from r.
func parseScript(r io.Reader) ([]step, error) {
	var steps []step
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		s, err := parseStep(text)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "line %d", n)
		}
		s.Line, s.Text = n, text
		steps = append(steps, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return steps, nil
}

func parseStep(text string) (step, error) {
	fields := strings.Fields(text)
	var s step
	if last := fields[len(fields)-1]; strings.HasPrefix(last, "@") {
		pos, err := parsePosition(last[1:])
		if err != nil {
			return s, err
		}
		s.Position = pos
		fields = fields[:len(fields)-1]
	}
	if len(fields) == 0 {
		return s, fmt.Errorf("missing verb")
	}

	verb, args := fields[0], fields[1:]
	level := func() error {
		if len(args) == 0 {
			return fmt.Errorf("%s needs a level (state or district)", verb)
		}
		l, err := feature.ParseLevel(args[0])
		if err != nil {
			return err
		}
		s.Level = l
		return nil
	}
	want := func(n int, usage string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}

	switch verb {
	case "hover":
		if err := want(2, "hover <level> <id>"); err != nil {
			return s, err
		}
		s.Kind = string(engine.MapHover)
		s.ID = args[1]
		err := level()
		return s, err
	case "leave":
		if err := want(1, "leave <level>"); err != nil {
			return s, err
		}
		s.Kind = string(engine.MapLeave)
		err := level()
		return s, err
	case "click":
		s.Kind = string(engine.MapClick)
		if len(args) == 0 {
			return s, nil
		}
		if err := want(2, "click [<level> <id>]"); err != nil {
			return s, err
		}
		s.ID = args[1]
		err := level()
		return s, err
	case "select":
		if err := want(2, "select <level> <id|->"); err != nil {
			return s, err
		}
		if err := level(); err != nil {
			return s, err
		}
		s.Kind = string(engine.EventSelectState)
		if s.Level == feature.LevelDistrict {
			s.Kind = string(engine.EventSelectDistrict)
		}
		s.ID = args[1]
		return s, nil
	case "reset":
		if err := want(0, "reset"); err != nil {
			return s, err
		}
		s.Kind = string(engine.EventResetAll)
		return s, nil
	case "compare", "add", "remove":
		if err := want(1, verb+" <district id>"); err != nil {
			return s, err
		}
		s.Kind = map[string]string{
			"compare": string(engine.EventToggleComparison),
			"add":     string(engine.EventAddComparison),
			"remove":  string(engine.EventRemoveComparison),
		}[verb]
		s.Level = feature.LevelDistrict
		s.ID = args[0]
		return s, nil
	}
	return s, fmt.Errorf("unknown verb %q", verb)
}

// parsePosition parses "lng,lat".
func parsePosition(v string) (*engine.Position, error) {
	lng, lat, ok := strings.Cut(v, ",")
	if !ok {
		return nil, fmt.Errorf("position %q: want @lng,lat", v)
	}
	x, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, fmt.Errorf("position %q: %w", v, err)
	}
	y, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("position %q: %w", v, err)
	}
	return &engine.Position{Lng: x, Lat: y}, nil
}
