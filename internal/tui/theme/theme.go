// Package theme provides the Lip Gloss color palette and reusable styles
// for the watcher TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// Species palette. Species names hash onto it so a species keeps its
// color across restarts.
var speciesPalette = []lipgloss.Color{
	"#a855f7",
	"#3b82f6",
	"#06b6d4",
	"#22c55e",
	"#f59e0b",
	"#ef4444",
	"#ec4899",
	"#84cc16",
}

// Node state colors.
var (
	ColorLive  = lipgloss.Color("#22c55e")
	ColorQuiet = lipgloss.Color("#d97706")
	ColorDown  = lipgloss.Color("#4b5563")
)

// Rate bar thresholds.
var (
	ColorRateLow  = lipgloss.Color("#3b82f6")
	ColorRateMid  = lipgloss.Color("#06b6d4")
	ColorRateHigh = lipgloss.Color("#22c55e")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#7c3aed")
	ColorInfo    = lipgloss.Color("#2563eb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// SpeciesColor returns a stable color for a species name.
func SpeciesColor(species string) lipgloss.Color {
	if species == "" {
		return ColorDefault
	}
	h := fnv.New32a()
	h.Write([]byte(species))
	return speciesPalette[h.Sum32()%uint32(len(speciesPalette))]
}

// HealthColor returns the color for a recorder health status string.
func HealthColor(status string) lipgloss.Color {
	switch status {
	case "healthy":
		return ColorHealthy
	case "degraded":
		return ColorWarning
	case "failed":
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// RateBarColor returns the bar color for a fill fraction in [0, 1].
func RateBarColor(frac float64) lipgloss.Color {
	switch {
	case frac > 0.66:
		return ColorRateHigh
	case frac > 0.33:
		return ColorRateMid
	default:
		return ColorRateLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
