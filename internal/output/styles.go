package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/nethalo/dbcharset/internal/analyzer"
)

// Colors
var (
	ColorOK      = lipgloss.Color("#04B575") // green
	ColorWarning = lipgloss.Color("#FFB800") // yellow
	ColorFailed  = lipgloss.Color("#FF4040") // red
	ColorInfo    = lipgloss.Color("#00BFFF") // cyan
	ColorMuted   = lipgloss.Color("#666666")
	ColorLabel   = lipgloss.Color("#AAAAAA")
)

func box(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// Boxes, by outcome.
var (
	BoxStyle        = box(ColorInfo)
	SafeBoxStyle    = box(ColorOK)
	WarningBoxStyle = box(ColorWarning)
	DangerBoxStyle  = box(ColorFailed)
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)
	LabelStyle = lipgloss.NewStyle().Foreground(ColorLabel).Width(18)
	ValueStyle = lipgloss.NewStyle()
	CodeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0E0E0"))
	MutedText  = lipgloss.NewStyle().Foreground(ColorMuted)

	SafeText    = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	WarningText = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	DangerText  = lipgloss.NewStyle().Foreground(ColorFailed).Bold(true)
)

// riskText colors a statement classification.
func riskText(risk analyzer.RiskLevel) lipgloss.Style {
	switch risk {
	case analyzer.RiskDangerous:
		return DangerText
	case analyzer.RiskCaution:
		return WarningText
	default:
		return MutedText
	}
}

// Indicators
const (
	IconSafe    = "✅"
	IconWarning = "⚠"
	IconDanger  = "❌"
	IconInfo    = "ℹ"
)
