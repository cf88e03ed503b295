package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
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
// Symbol Styles
// =============================================================================

var (
	styleOp        = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	styleData      = lipgloss.NewStyle().Foreground(colorGreen)
	styleContainer = lipgloss.NewStyle().Foreground(colorYellow)
	styleRef       = lipgloss.NewStyle().Foreground(colorBlue)
)

// typeStyle returns the style used for symbols of the given schema type.
func typeStyle(typ string) lipgloss.Style {
	switch typ {
	case "graphop":
		return styleOp
	case "graphdata":
		return styleData
	case "graphcontainer":
		return styleContainer
	}
	return StyleValue
}

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// stdout receives all user-facing output. Logs go to the logger's writer.
var stdout io.Writer = os.Stdout

// status prints one icon-prefixed line.
func status(icon string, iconStyle, msgStyle lipgloss.Style, format string, args ...any) {
	fmt.Fprintln(stdout, iconStyle.Render(icon)+" "+msgStyle.Render(fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) {
	status(iconSuccess, styleIconSuccess, lipgloss.NewStyle(), format, args...)
}

func printError(format string, args ...any) {
	status(iconError, styleIconError, lipgloss.NewStyle(), format, args...)
}

func printWarning(format string, args ...any) {
	status(iconWarning, styleIconWarning, StyleWarning, format, args...)
}

func printInfo(format string, args ...any) {
	status(iconInfo, styleIconInfo, lipgloss.NewStyle(), format, args...)
}

// printDetail prints an indented, dimmed line under the previous status.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written output file.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

var styleKey = lipgloss.NewStyle().Foreground(colorGray).Width(12)

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printRunStats prints the size of a recorded graph on one line, and whether
// its diagrams came from the cache.
func printRunStats(ops, containers, symbols int, cached bool) {
	state, stateStyle := iconFresh, styleComputed
	if cached {
		state, stateStyle = iconCached, styleCached
	}
	sep := StyleDim.Render(" · ")
	fmt.Fprintln(stdout, "  "+strings.Join([]string{
		StyleDim.Render(fmt.Sprintf("%d ops", ops)),
		StyleDim.Render(fmt.Sprintf("%d containers", containers)),
		StyleDim.Render(fmt.Sprintf("%d symbols", symbols)),
		stateStyle.Render(state),
	}, sep))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}
