package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4") // Purple - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Severity colors
	High   = lipgloss.Color("#FF6B6B")
	Medium = lipgloss.Color("#FFD93D")
	Low    = lipgloss.Color("#6BCB77")
	Info   = lipgloss.Color("#4D96FF")

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")

	Foreground = lipgloss.Color("#FAFAFA")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Foreground).
			Background(Primary).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Bold(true).
			MarginTop(1)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(Foreground)

	// Hop names in traces
	HopStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// Escaped control bytes (\r, \n, \t) inside rendered wire data
	EscapeStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	PassStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	CategoryStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(lipgloss.Color("#3B3B4F")).
			Padding(0, 1)
)

// SeverityStyle returns the badge style for a finding severity.
func SeverityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch severity {
	case "high":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(High)
	case "medium":
		return base.Foreground(lipgloss.Color("#000000")).Background(Medium)
	case "low":
		return base.Foreground(lipgloss.Color("#000000")).Background(Low)
	case "info":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Info)
	default:
		return base.Foreground(Muted)
	}
}
