// Package ui layout constants for consistent spacing and dimensions
package ui

// Layout constants for pane sizing
const (
	HeaderHeight = 1
	FooterHeight = 1
	InputHeight  = 3 // bordered single-line input

	// Panel borders and spacing
	PanelBorderWidth = 1
	PanelPaddingH    = 1

	// Operations pane takes this share of the space below the header; the
	// statistics pane takes the rest.
	OpsPaneRatio = 0.45

	MinChartHeight = 4
	ChartAxisWidth = 8

	MinimumTerminalWidth  = 40
	MinimumTerminalHeight = 16
)

// LayoutConfig provides computed pane dimensions for a terminal size
type LayoutConfig struct {
	TerminalWidth  int
	TerminalHeight int
}

// NewLayoutConfig creates a layout configuration for the given terminal size
func NewLayoutConfig(width, height int) LayoutConfig {
	if width < MinimumTerminalWidth {
		width = MinimumTerminalWidth
	}
	if height < MinimumTerminalHeight {
		height = MinimumTerminalHeight
	}
	return LayoutConfig{TerminalWidth: width, TerminalHeight: height}
}

// bodyHeight is what remains for the two panes.
func (l LayoutConfig) bodyHeight() int {
	return l.TerminalHeight - HeaderHeight - FooterHeight - InputHeight
}

// OpsPaneHeight is the outer height of the operations pane.
func (l LayoutConfig) OpsPaneHeight() int {
	return int(float64(l.bodyHeight()) * OpsPaneRatio)
}

// StatsPaneHeight is the outer height of the statistics pane.
func (l LayoutConfig) StatsPaneHeight() int {
	return l.bodyHeight() - l.OpsPaneHeight()
}

// PanelContentWidth returns the content width inside a bordered panel
func PanelContentWidth(panelWidth int) int {
	return panelWidth - (PanelBorderWidth * 2) - (PanelPaddingH * 2)
}

// PanelContentHeight returns the content height inside a bordered panel
func PanelContentHeight(panelHeight int) int {
	return panelHeight - (PanelBorderWidth * 2)
}
