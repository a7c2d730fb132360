package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// fprintKeyValue prints a labeled value.
func fprintKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Domain Formatting
// =============================================================================

// printLayerStats prints catalogue counts on a single line.
func printLayerStats(states, districts, orphans int, cached bool) {
	parts := []string{
		fmt.Sprintf("%d states", states),
		fmt.Sprintf("%d districts", districts),
	}
	if orphans > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d orphans", orphans)))
	}
	status, statusStyle := "fresh", styleComputed
	if cached {
		status, statusStyle = "cache on", styleCached
	}
	parts = append(parts, statusStyle.Render(status))
	fmt.Println("  " + strings.Join(parts, StyleDim.Render(" · ")))
}

// formatFeature renders a feature as "Name (id)", or "—" when absent.
func formatFeature(f *feature.Feature) string {
	if f == nil {
		return "—"
	}
	label := f.DisplayName()
	if label != f.ID {
		label += " (" + f.ID + ")"
	}
	if f.Stub {
		label += " stub"
	}
	return label
}

// formatDirective renders one directive as plain text.
func formatDirective(d engine.Directive) string {
	var s string
	switch d.Kind {
	case engine.DirectiveBoundTo:
		names := make([]string, len(d.Features))
		for i, f := range d.Features {
			names[i] = f.String()
		}
		s = "viewport bound_to " + strings.Join(names, ", ")
	case engine.DirectiveCenterDefault:
		s = "viewport center_default"
	case engine.DirectiveSetVisible:
		s = fmt.Sprintf("layer %s visible=%t", d.Level, d.Visible)
	case engine.DirectiveShowPopup:
		s = fmt.Sprintf("popup show %s %s at %s", d.Popup, d.Feature, d.Position)
	case engine.DirectiveHidePopup:
		s = "popup hide"
	default:
		s = string(d.Kind)
	}
	if d.Intermediate {
		s += " (intermediate)"
	}
	return s
}

// styleDirective colours a formatted directive by its sink.
func styleDirective(d engine.Directive) string {
	line := formatDirective(d)
	if d.Intermediate {
		return StyleDim.Render(iconArrow + " " + line)
	}
	return StyleHighlight.Render(iconArrow) + " " + StyleValue.Render(line)
}
