package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles renders status words and headings
type Styles struct {
	OK    lipgloss.Style
	Fail  lipgloss.Style
	Warn  lipgloss.Style
	Title lipgloss.Style
	Muted lipgloss.Style
}

// NewStyles returns colored styles, or plain ones when noColor is set
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{OK: plain, Fail: plain, Warn: plain, Title: plain, Muted: plain}
	}
	return Styles{
		OK:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		Fail:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Status renders OK or FAIL
func (s Styles) Status(ok bool) string {
	if ok {
		return s.OK.Render("OK")
	}
	return s.Fail.Render("FAIL")
}

// YesNo renders yes or no
func (s Styles) YesNo(ok bool) string {
	if ok {
		return s.OK.Render("yes")
	}
	return s.Warn.Render("no")
}
