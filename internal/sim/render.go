package sim

import (
	"fmt"
	"strconv"
	"strings"

	"rosterd/internal/domain"
	"rosterd/internal/textfmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	idleStyle   = cellStyle.Foreground(lipgloss.Color("#777777"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			MarginLeft(2)
)

// Headers are the columns of Rows.
var Headers = []string{"Rank", "Group", "Entity", "Prefix", "Suffix", "Label"}

// Rows lists a board: rank groups in rank order, then identity groups.
// Decoration text is shown without colour codes.
func (r *Runner) Rows(board *domain.Board) [][]string {
	var rows [][]string
	var identity []domain.GroupView
	for _, g := range board.View() {
		if domain.IsIdentityGroup(g.Name) {
			identity = append(identity, g)
		}
	}
	for i := 0; ; i++ {
		g, ok := board.Group(domain.RankGroupName(i))
		if !ok {
			break
		}
		rows = append(rows, r.row(strconv.Itoa(i), g.Name(), g.Members(), g.Decoration()))
	}
	for _, g := range identity {
		rows = append(rows, r.row("-", g.Name, g.Members, g.Decoration))
	}
	return rows
}

func (r *Runner) row(rank, group string, members []string, d domain.Decoration) []string {
	entity, label := "", ""
	if len(members) > 0 {
		id := members[0]
		entity = id
		if e, ok := r.Stack.Host.Entity(id); ok {
			entity = e.Name
		}
		if l, ok := r.Stack.Host.Label(id); ok {
			label = textfmt.Strip(l)
		}
	}
	return []string{rank, group, entity, textfmt.Strip(d.Prefix), textfmt.Strip(d.Suffix), label}
}

// Render draws the board seen by viewer (an entity name) as a table. An empty
// viewer shows the board of the first connected entity.
func (r *Runner) Render(viewer string) string {
	id := EntityID(viewer)
	if viewer == "" {
		entities := r.Stack.Host.Entities()
		if len(entities) == 0 {
			return titleStyle.Render(fmt.Sprintf("tick %d: roster is empty", r.tick))
		}
		id, viewer = entities[0].ID, entities[0].Name
	}
	board, ok := r.Stack.ViewBoard(id)
	if !ok {
		return titleStyle.Render(fmt.Sprintf("tick %d: %s is not connected", r.tick, viewer))
	}

	rows := r.Rows(board)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(rows) && rows[row][2] == "":
				return idleStyle
			default:
				return cellStyle
			}
		}).
		Headers(Headers...).
		Rows(rows...)

	title := titleStyle.Render(fmt.Sprintf("tick %d, board %s (viewer %s, revision %d)", r.tick, board.ID(), viewer, board.Revision()))
	list := t.Render()
	if panel, ok := r.Stack.Host.Sidebar(id); ok {
		list = lipgloss.JoinHorizontal(lipgloss.Top, list, renderSidebar(panel))
	}

	parts := []string{title}
	hf, hasHF := r.Stack.Host.HeaderFooter(id)
	if hasHF && hf.Header != "" {
		parts = append(parts, textStyle.Render(textfmt.Strip(hf.Header)))
	}
	parts = append(parts, list)
	if hasHF && hf.Footer != "" {
		parts = append(parts, textStyle.Render(textfmt.Strip(hf.Footer)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderSidebar(panel domain.Sidebar) string {
	lines := make([]string, 0, len(panel.Lines)+1)
	lines = append(lines, headerStyle.UnsetPadding().Render(textfmt.Strip(panel.Title)))
	for _, l := range panel.Lines {
		lines = append(lines, textfmt.Strip(l))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}
