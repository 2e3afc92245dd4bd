package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/pipeline"
)

var (
	listDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	detailKeyStyle = lipgloss.NewStyle().Foreground(colorGray).Width(10)
	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

// planModel is the bubbletea model for browsing a plan. The cursor selects
// a candidate; enter toggles a detail pane with its dependencies and the
// candidates that satisfy them.
type planModel struct {
	plan    *pipeline.Plan
	cursor  int
	offset  int
	height  int
	details bool
}

func newPlanModel(plan *pipeline.Plan) planModel {
	return planModel{plan: plan, height: 15}
}

func (m planModel) Init() tea.Cmd { return nil }

func (m planModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	n := len(m.plan.Packages)
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < n-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = max(n-1, 0)
		case "enter", " ":
			m.details = !m.details
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 5)
	}

	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
	return m, nil
}

func (m planModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Plan: %s", m.plan.Action)))
	b.WriteString("  ")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("%d of %d candidates kept", m.plan.Stats.Kept, m.plan.Stats.Gathered)))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	pkgs := m.plan.Packages
	if len(pkgs) == 0 {
		b.WriteString(StyleWarning.Render("No candidates."))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.offset+m.height, len(pkgs))
	rows := make([][]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		row := packageRow(pkgs[i])
		rows = append(rows, []string{cursor, row[0], row[1], row[2]})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Version", "Source").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.offset + row
			if idx >= len(pkgs) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if !pkgs[idx].Listed {
				base = styleUnlisted
			}
			if idx == m.cursor {
				return base.Foreground(colorGreen).Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	if m.details {
		b.WriteString(m.detailView(pkgs[m.cursor]))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, len(pkgs))))
	return b.String()
}

// detailView lists p's dependencies with the kept versions that satisfy each.
func (m planModel) detailView(p *packaging.SourcePackageDependencyInfo) string {
	var lines []string
	lines = append(lines, detailKeyStyle.Render("Package")+StyleValue.Render(p.String()))
	if p.Source != "" {
		lines = append(lines, detailKeyStyle.Render("Source")+StyleValue.Render(p.Source))
	}
	if !p.Listed {
		lines = append(lines, detailKeyStyle.Render("Listed")+StyleWarning.Render("no"))
	}
	if len(p.Dependencies) == 0 {
		lines = append(lines, listDimStyle.Render("no dependencies"))
	}
	for _, d := range p.Dependencies {
		var matches []string
		for _, c := range m.plan.Packages {
			if c.SameID(d.ID) && c.HasVersion() && d.Range.Satisfies(c.Version) {
				matches = append(matches, c.Version.String())
			}
		}
		resolved := StyleWarning.Render("unresolved")
		if len(matches) > 0 {
			resolved = StyleValue.Render(strings.Join(matches, ", "))
		}
		lines = append(lines, detailKeyStyle.Render(iconArrow)+d.String()+" "+listDimStyle.Render("·")+" "+resolved)
	}
	return detailBoxStyle.Render(strings.Join(lines, "\n"))
}
