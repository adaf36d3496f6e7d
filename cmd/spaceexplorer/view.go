package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"

	"github.com/substrateos/spacekit/internal/args"
)

// View renders the entire UI
func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	main := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		paneStyle.Render(m.table.View()),
		m.renderPrompt(),
		m.renderStatus(),
	)

	if m.showHelp {
		help := overlay.New(
			helpModel{},
			staticModel{view: main},
			overlay.Center,
			overlay.Center,
			0,
			0,
		)
		return help.View()
	}
	return main
}

func (m Model) renderHeader() string {
	title := headerStyle.Render("Address Space Explorer")

	context := "Root space"
	if !m.atRoot() {
		context = fmt.Sprintf("Reservation %s", args.FormatSize(m.current.Size()))
		if base := m.current.Base(); base != 0 {
			context += fmt.Sprintf(" at base %#x", uintptr(base))
		} else {
			context += " (detached)"
		}
	}
	stats := m.upstream.Stats()
	traffic := contextStyle.Render(fmt.Sprintf("parent: %d sessions, %d upgrades",
		stats.SessionCalls, stats.UpgradeCalls))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", contextStyle.Render(context)),
		traffic,
	)
}

func (m Model) renderPrompt() string {
	switch m.inputMode {
	case AttachInputMode:
		label := "Attach size"
		if !m.atRoot() {
			label = "Attach OFFSET:SIZE"
		}
		return promptStyle.Render(fmt.Sprintf("%s> %s█", label, m.inputBuffer))
	case ReserveInputMode:
		return promptStyle.Render(fmt.Sprintf("Reservation size> %s█", m.inputBuffer))
	default:
		return ""
	}
}

func (m Model) renderStatus() string {
	if m.statusMessage != "" {
		return messageStyle.Render(m.statusMessage)
	}
	return statusStyle.Render("a attach · r reserve · d detach · enter open · y yank · ? help · q quit")
}

// staticModel wraps an already-rendered view as the overlay background.
type staticModel struct{ view string }

func (s staticModel) Init() tea.Cmd                       { return nil }
func (s staticModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return s, nil }
func (s staticModel) View() string                        { return s.view }

// helpModel renders the help overlay box.
type helpModel struct{}

func (h helpModel) Init() tea.Cmd                       { return nil }
func (h helpModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return h, nil }

func (h helpModel) View() string {
	lines := []struct{ key, desc string }{
		{"↑/k, ↓/j", "move cursor"},
		{"a", "attach an anonymous dataspace (prompts for size)"},
		{"r", "create a reservation (prompts for size)"},
		{"d", "detach the selected region"},
		{"enter", "enter the selected reservation"},
		{"esc", "back to the root table"},
		{"y", "copy the selected start address"},
		{"R", "refresh the tables"},
		{"?", "toggle this help"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Keys") + "\n\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "%s  %s\n", helpKeyStyle.Render(fmt.Sprintf("%-10s", l.key)), l.desc)
	}
	return helpBoxStyle.Render(b.String())
}
