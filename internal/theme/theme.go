package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/action-store/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
)

// HeaderStyle is used for report titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// LabelStyle is used for the key column of key/value listings.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(16)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// OKStyle marks a clean result.
var OKStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)

// WarnStyle marks a finding that was left in place.
var WarnStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorYellow)

// ErrorStyle marks a failure.
var ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)

// HelpStyle is used for hints below a report.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// FolderTypeStyle returns a color-coded style for the given folder type.
func FolderTypeStyle(t model.FolderType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Width(10)

	switch t {
	case model.FolderInbox:
		return base.Foreground(ColorBlue)
	case model.FolderAction:
		return base.Foreground(ColorGreen)
	case model.FolderProject:
		return base.Foreground(ColorMagenta)
	case model.FolderSomeday, model.FolderReference:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}
