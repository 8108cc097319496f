package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

func (r *runner) ok(msg string) {
	fmt.Fprintln(r.opt.Out, successStyle.Render("✔ "+msg))
}

func (r *runner) fail(msg string) {
	fmt.Fprintln(r.opt.Err, errorStyle.Render("✖ "+msg))
}

func (r *runner) panel(lines []string) {
	fmt.Fprintln(r.opt.Out, panelString(strings.Join(lines, "\n")))
}

func panelString(inner string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)
	return border.Render(inner)
}

// pageSummary is the "page 2/4 · 17 total" header shown above lists.
func pageSummary(page, pages, count, size int) string {
	return mutedStyle.Render(fmt.Sprintf("page %d/%d · %d total · %d per page", page, pages, count, size))
}
