package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/sink"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listMarkedStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	panelStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// maxDirectiveLog is how many directives the explorer keeps on screen.
const maxDirectiveLog = 8

// =============================================================================
// ExploreModel - Interactive map explorer
// =============================================================================

// ExploreModel is the bubbletea model of the explore command. Moving the
// cursor hovers features, enter selects them, and the side panel shows the
// state the engine's directives produced.
type ExploreModel struct {
	ctx      context.Context
	eng      *engine.Engine
	recorder *sink.Recorder
	viewport *sink.Viewport
	cat      *geodata.Catalogue

	Level  feature.Level
	Items  []*feature.Feature
	Cursor int
	Offset int
	Height int

	Last   engine.Result
	Recent []string

	// Settle is the viewport debounce interval. When positive the model
	// redraws once the camera has caught up with a keypress.
	Settle time.Duration
}

// settledMsg asks for a redraw after debounced directives were applied.
type settledMsg struct{}

// NewExploreModel creates an explorer over cat driving eng. Directives must
// reach recorder and viewport.
func NewExploreModel(ctx context.Context, eng *engine.Engine, recorder *sink.Recorder, viewport *sink.Viewport, cat *geodata.Catalogue) ExploreModel {
	m := ExploreModel{
		ctx:      ctx,
		eng:      eng,
		recorder: recorder,
		viewport: viewport,
		cat:      cat,
		Height:   15,
	}
	m.showStates()
	return m
}

func (m ExploreModel) Init() tea.Cmd {
	return nil
}

func (m ExploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
				m.hover()
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
				m.hover()
			}
		case "enter":
			m.selectCurrent()
		case "esc", "backspace":
			m.back()
		case "c":
			if f := m.current(); f.Is(feature.LevelDistrict) {
				m.record(m.eng.ToggleComparison(m.ctx, f))
			}
		case "r":
			m.record(m.eng.ResetAll(m.ctx))
			m.showStates()
		case "tab":
			m.switchLevel()
		}
		return m, m.settle()
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	case settledMsg:
	}
	return m, nil
}

func (m ExploreModel) settle() tea.Cmd {
	if m.Settle <= 0 {
		return nil
	}
	return tea.Tick(2*m.Settle, func(time.Time) tea.Msg { return settledMsg{} })
}

// current returns the feature under the cursor, or nil.
func (m *ExploreModel) current() *feature.Feature {
	if m.Cursor < 0 || m.Cursor >= len(m.Items) {
		return nil
	}
	return m.Items[m.Cursor]
}

func (m *ExploreModel) hover() {
	f := m.current()
	pos := m.anchor(f)
	if m.Level == feature.LevelState {
		m.record(m.eng.HoverState(m.ctx, f, pos))
		return
	}
	m.record(m.eng.HoverDistrict(m.ctx, f, pos))
}

func (m *ExploreModel) selectCurrent() {
	f := m.current()
	if f == nil {
		return
	}
	if m.Level == feature.LevelState {
		m.record(m.eng.SelectState(m.ctx, f, m.anchor(f)))
		m.showDistricts(f.ID)
		return
	}
	m.record(m.eng.SelectDistrict(m.ctx, f, m.anchor(f)))
}

// back deselects the innermost selection.
func (m *ExploreModel) back() {
	snap := m.eng.Snapshot()
	switch {
	case snap.District.Selected != nil:
		m.record(m.eng.SelectDistrict(m.ctx, nil, nil))
	case snap.State.Selected != nil:
		m.record(m.eng.SelectState(m.ctx, nil, nil))
		m.showStates()
	}
}

func (m *ExploreModel) switchLevel() {
	if m.Level == feature.LevelDistrict {
		m.showStates()
		return
	}
	if s := m.eng.Snapshot().State.Selected; s != nil {
		m.showDistricts(s.ID)
	}
}

func (m *ExploreModel) showStates() {
	m.Level = feature.LevelState
	m.Items = m.cat.States()
	m.Cursor, m.Offset = 0, 0
}

func (m *ExploreModel) showDistricts(stateID string) {
	m.Level = feature.LevelDistrict
	m.Items = m.cat.DistrictsOf(stateID)
	m.Cursor, m.Offset = 0, 0
}

// anchor places popups at the center of the feature's bound, like a click
// in the middle of the shape.
func (m *ExploreModel) anchor(f *feature.Feature) *engine.Position {
	g := m.cat.Geometry(f)
	if g == nil {
		return nil
	}
	c := g.Bound().Center()
	return &engine.Position{Lng: c.Lon(), Lat: c.Lat()}
}

func (m *ExploreModel) record(res engine.Result) {
	m.Last = res
	for _, d := range res.Directives {
		m.Recent = append(m.Recent, formatDirective(d))
	}
	if n := len(m.Recent); n > maxDirectiveLog {
		m.Recent = m.Recent[n-maxDirectiveLog:]
	}
}

func (m ExploreModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Atlas Explorer"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ hover  ⏎ select  esc back  c compare  tab level  r reset  q quit"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.listView(), " ", m.panelView()))
	return b.String()
}

func (m ExploreModel) listView() string {
	var b strings.Builder
	title := "States"
	if m.Level == feature.LevelDistrict {
		title = "Districts"
		if s := m.eng.Snapshot().State.Selected; s != nil {
			title += " of " + s.DisplayName()
		}
	}
	b.WriteString(StyleHighlight.Render(title))
	b.WriteString("\n")

	snap := m.eng.Snapshot()
	compared := make(map[string]bool, len(snap.Comparison))
	for _, f := range snap.Comparison {
		compared[f.ID] = true
	}

	end := min(m.Offset+m.Height, len(m.Items))
	for i := m.Offset; i < end; i++ {
		f := m.Items[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := " "
		if compared[f.ID] {
			mark = listMarkedStyle.Render("◆")
		}
		line := fmt.Sprintf("%s%s %-28s %s", cursor, mark, truncate(f.DisplayName(), 28), listDimStyle.Render(f.ID))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.Items) == 0 {
		b.WriteString(listDimStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Items)), len(m.Items))))
	return b.String()
}

func (m ExploreModel) panelView() string {
	snap := m.eng.Snapshot()
	view := m.recorder.View()
	cam := m.viewport.Camera()

	var b strings.Builder
	row := func(k, v string) {
		b.WriteString(lipgloss.NewStyle().Foreground(colorGray).Width(11).Render(k))
		b.WriteString(StyleValue.Render(v))
		b.WriteString("\n")
	}
	row("state", formatFeature(snap.State.Selected))
	row("district", formatFeature(snap.District.Selected))
	row("hover", formatFeature(firstNonNil(snap.District.Hovered, snap.State.Hovered)))
	row("layers", fmt.Sprintf("state=%t district=%t", view.Layers[feature.LevelState], view.Layers[feature.LevelDistrict]))
	popup := "—"
	if view.Popup != nil {
		popup = fmt.Sprintf("%s %s", view.Popup.Kind, formatFeature(view.Popup.Feature))
	}
	row("popup", popup)
	row("camera", fmt.Sprintf("%.2f, %.2f z%.1f moves %d", cam.Center.Lon(), cam.Center.Lat(), cam.Zoom, m.viewport.Moves()))
	row("compare", fmt.Sprintf("%d/%d %s", len(snap.Comparison), snap.Capacity, snap.Route))

	if !m.Last.OK() {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render(fmt.Sprintf("%s %s", iconWarning, m.Last.Status)))
		b.WriteString(" " + listDimStyle.Render(m.Last.Message))
		b.WriteString("\n")
	}
	if len(m.Recent) > 0 {
		b.WriteString("\n")
		for _, d := range m.Recent {
			b.WriteString(listDimStyle.Render(iconArrow + " " + d))
			b.WriteString("\n")
		}
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// =============================================================================
// Helpers
// =============================================================================

func firstNonNil(fs ...*feature.Feature) *feature.Feature {
	for _, f := range fs {
		if f != nil {
			return f
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
