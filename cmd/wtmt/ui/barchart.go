package ui

import (
	"math"
	"strings"
)

// blocks are the eighth-height bar glyphs, empty first.
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// HeadroomRatio is the share of the chart height the running maximum reaches.
const HeadroomRatio = 0.75

// BarHeights scales values to bar heights in eighths of a row for a chart of
// the given height, so that max reaches HeadroomRatio of the chart. Non-zero
// values always get at least one eighth.
func BarHeights(values []float64, max float64, height int) []int {
	out := make([]int, len(values))
	if max <= 0 || height <= 0 {
		return out
	}
	full := height * 8
	top := float64(full) * HeadroomRatio
	for i, v := range values {
		if v <= 0 {
			continue
		}
		h := int(math.Round(v / max * top))
		if h < 1 {
			h = 1
		}
		if h > full {
			h = full
		}
		out[i] = h
	}
	return out
}

// ChartScale is the value represented by the full chart height.
func ChartScale(max float64) float64 {
	return max / HeadroomRatio
}

// RenderBars draws one column per value, newest on the right. Only the last
// width values are drawn; fewer values leave empty columns on the left.
func RenderBars(values []float64, max float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	heights := BarHeights(values, max, height)
	pad := width - len(heights)

	rows := make([]string, height)
	var sb strings.Builder
	for r := 0; r < height; r++ {
		sb.Reset()
		sb.WriteString(strings.Repeat(" ", pad))
		base := (height - 1 - r) * 8
		for _, h := range heights {
			level := h - base
			if level < 0 {
				level = 0
			}
			if level > 8 {
				level = 8
			}
			sb.WriteRune(blocks[level])
		}
		rows[r] = sb.String()
	}
	return strings.Join(rows, "\n")
}
