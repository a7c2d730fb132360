package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
)

// inspectCommand creates the inspect command summarizing the catalogue.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		load   loadOpts
		search string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the loaded state and district layers",
		Long: `Summarize the loaded state and district layers.

Lists every state with its district count and population, and warns about
districts whose parent state is missing. Selecting such a district falls
back to a stub parent state. With --search, lists matching districts instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := c.loadCatalogue(cmd.Context(), load)
			if err != nil {
				return fmt.Errorf("load catalogue: %w", err)
			}
			if search != "" {
				return runSearch(cat, search, limit)
			}
			return runInspect(cmd.Context(), cat, !load.noCache)
		},
	}

	load.register(cmd)
	cmd.Flags().StringVarP(&search, "search", "s", "", "list districts whose name or id contains this text")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum search results")

	return cmd
}

func runInspect(ctx context.Context, cat *geodata.Catalogue, cached bool) error {
	states, districts := cat.Len()
	orphans := cat.Orphans()

	fmt.Println(StyleTitle.Render("Catalogue"))
	printLayerStats(states, districts, len(orphans), cached)
	fmt.Println()
	fmt.Println(stateTable(cat))

	if len(orphans) > 0 {
		printWarning("%d districts reference a state that is not loaded", len(orphans))
		for i, f := range orphans {
			if i == 5 {
				printDetail("... and %d more", len(orphans)-i)
				break
			}
			printDetail("%s -> %s", formatFeature(f), f.ParentID)
		}
	}
	loggerFromContext(ctx).Debug("inspect done", "states", states, "districts", districts)
	return nil
}

func runSearch(cat *geodata.Catalogue, query string, limit int) error {
	matches := cat.Search(feature.LevelDistrict, query, limit)
	if len(matches) == 0 {
		printInfo("No district matches %q", query)
		return nil
	}
	for _, f := range matches {
		parent := f.ParentID
		if s := cat.State(f.ParentID); s != nil {
			parent = s.DisplayName()
		}
		fmt.Println(StyleNumber.Render(f.ID) + " " + StyleValue.Render(f.DisplayName()) + " " + StyleDim.Render(parent))
	}
	printNextStep("Compare them", "atlas replay - <<< 'compare "+matches[0].ID+"'")
	return nil
}

// stateTable renders one row per state: id, name, districts, population.
func stateTable(cat *geodata.Catalogue) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	var rows [][]string
	for _, s := range cat.States() {
		children := cat.DistrictsOf(s.ID)
		pop := s.Population
		if pop == 0 {
			for _, d := range children {
				pop += d.Population
			}
		}
		rows = append(rows, []string{s.ID, s.DisplayName(), strconv.Itoa(len(children)), formatPopulation(pop)})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("State", "Name", "Districts", "Population").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 0:
				return StyleHighlight
			case col >= 2:
				return StyleNumber.Align(lipgloss.Right)
			}
			return StyleValue
		}).
		Render()
}

// formatPopulation groups digits in thousands: 11466630 -> "11.466.630".
func formatPopulation(n int64) string {
	if n <= 0 {
		return "—"
	}
	s := strconv.FormatInt(n, 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "." + s[i:]
	}
	return s
}
