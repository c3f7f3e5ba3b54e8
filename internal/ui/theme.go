package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	IconWeek    = "🗓️"
	IconTask    = "📋"
	IconTrophy  = "🏆"
	IconStreak  = "🔥"
	IconPlayer  = "👤"
	IconCoin    = "🪙"
	IconDone    = "✅"
	IconWarn    = "⚠️"
	IconError   = "🧨"
	IconSparkle = "✨"
)

var (
	cPrimary = lipgloss.Color("33")  // base blue
	cAccent  = lipgloss.Color("39")  // light blue
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)

	Panel = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
)

func Heading(icon string, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// SettlementText colours a week's settlement status.
func SettlementText(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SETTLED":
		return Good.Render(status)
	case "PENDING", "CLAIMED":
		return Warn.Render(status)
	case "FAILED":
		return Bad.Render(status)
	default:
		return Muted.Render(status)
	}
}

func ActiveText(active bool) string {
	if active {
		return Good.Render("active")
	}
	return Muted.Render("inactive")
}
