package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/substrateos/spacekit/env"
	"github.com/substrateos/spacekit/internal/args"
	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/dataspace"
	"github.com/substrateos/spacekit/space/parent"
	"github.com/substrateos/spacekit/space/session"
)

// InputMode represents different input modes
type InputMode int

const (
	NormalMode InputMode = iota
	AttachInputMode  // entering a size (root) or OFFSET:SIZE (nested)
	ReserveInputMode // entering a reservation size
)

// Model is the main application model. It drives one live process
// environment: the region tables it renders are real, as are the mappings
// behind them.
type Model struct {
	env      *env.Env
	upstream *parent.Local
	keys     KeyMap
	table    table.Model

	// current is the space whose table is displayed: the root, or a
	// reservation the user entered.
	current *space.Space

	// rmCaps maps a reservation's region start in the root table to the
	// session capability that owns it, so detach can close the session.
	rmCaps map[space.Addr]session.Capability

	inputMode   InputMode
	inputBuffer string

	statusMessage string
	showHelp      bool
	width         int
	height        int

	err error
}

// NewModel creates the TUI model over a live environment.
func NewModel(e *env.Env, upstream *parent.Local) Model {
	columns := []table.Column{
		{Title: "Start", Width: 18},
		{Title: "End", Width: 18},
		{Title: "Size", Width: 8},
		{Title: "Backing", Width: 28},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	m := Model{
		env:      e,
		upstream: upstream,
		keys:     DefaultKeyMap(),
		table:    t,
		current:  e.RM(),
		rmCaps:   make(map[space.Addr]session.Capability),
	}
	m.refreshRows()
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// refreshRows rebuilds the table rows from the current space's region table.
func (m *Model) refreshRows() {
	regions := m.current.Regions()
	rows := make([]table.Row, 0, len(regions))
	for _, r := range regions {
		rows = append(rows, table.Row{
			fmt.Sprintf("%#x", uintptr(r.Start)),
			fmt.Sprintf("%#x", uintptr(r.End())),
			args.FormatSize(r.Size),
			backingName(r.Backing),
		})
	}
	m.table.SetRows(rows)
}

// selectedRegion returns the region under the cursor.
func (m *Model) selectedRegion() (space.Region, bool) {
	regions := m.current.Regions()
	i := m.table.Cursor()
	if i < 0 || i >= len(regions) {
		return space.Region{}, false
	}
	return regions[i], true
}

// atRoot reports whether the root table is displayed.
func (m *Model) atRoot() bool { return m.current == m.env.RM() }

func backingName(ds dataspace.Dataspace) string {
	switch b := ds.(type) {
	case *dataspace.File:
		return "file:" + b.Name()
	case *dataspace.Anon:
		return "anon:" + b.Name()
	case *space.Space:
		return "reservation:" + args.FormatSize(b.Size())
	default:
		return "unknown"
	}
}
