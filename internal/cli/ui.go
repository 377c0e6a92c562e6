package cli

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// confirm 弹出交互确认。auto_confirm 开启或传入 yes 时直接放行。
func (a *App) confirm(yes bool, title string) (bool, error) {
	if yes || a.Config.General.AutoConfirm {
		return true, nil
	}

	var ok bool
	prompt := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)
	if err := huh.NewForm(huh.NewGroup(prompt)).Run(); err != nil {
		return false, err
	}
	return ok, nil
}
