package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/substrateos/spacekit/cmd/spaceexplorer/logger"
	"github.com/substrateos/spacekit/internal/args"
	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/dataspace"
	"github.com/substrateos/spacekit/space/session"
)

// clearStatusMsg clears the transient status message.
type clearStatusMsg struct{}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{} })
}

// Update handles all messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil

	case clearStatusMsg:
		m.statusMessage = ""
		return m, nil

	case tea.KeyMsg:
		// Help overlay swallows everything except its own dismissal.
		if m.showHelp {
			if key.Matches(msg, m.keys.Esc) || key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Quit) {
				m.showHelp = false
			}
			return m, nil
		}

		if m.inputMode != NormalMode {
			return m.handleInputMode(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil

		case key.Matches(msg, m.keys.Esc):
			if !m.atRoot() {
				m.current = m.env.RM()
				m.refreshRows()
				m.statusMessage = "Back at root space"
				return m, clearStatusAfter(2 * time.Second)
			}
			m.statusMessage = ""
			return m, nil

		case key.Matches(msg, m.keys.Attach):
			m.inputMode = AttachInputMode
			m.inputBuffer = ""
			return m, nil

		case key.Matches(msg, m.keys.Reserve):
			if !m.atRoot() {
				m.statusMessage = "Reservations cannot nest"
				return m, clearStatusAfter(3 * time.Second)
			}
			m.inputMode = ReserveInputMode
			m.inputBuffer = ""
			return m, nil

		case key.Matches(msg, m.keys.Detach):
			return m.handleDetach()

		case key.Matches(msg, m.keys.Enter):
			return m.handleEnterReservation()

		case key.Matches(msg, m.keys.Yank):
			return m.handleYank()

		case key.Matches(msg, m.keys.Refresh):
			m.refreshRows()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// handleInputMode accumulates the size/offset prompt and commits on enter.
func (m Model) handleInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputMode = NormalMode
		m.inputBuffer = ""
		return m, nil
	case tea.KeyBackspace:
		if len(m.inputBuffer) > 0 {
			m.inputBuffer = m.inputBuffer[:len(m.inputBuffer)-1]
		}
		return m, nil
	case tea.KeyEnter:
		mode := m.inputMode
		input := m.inputBuffer
		m.inputMode = NormalMode
		m.inputBuffer = ""
		if mode == ReserveInputMode {
			return m.applyReserve(input)
		}
		return m.applyAttach(input)
	case tea.KeyRunes:
		m.inputBuffer += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m Model) applyAttach(input string) (tea.Model, tea.Cmd) {
	var (
		sizeSpec string
		offset   space.Addr
		fixed    bool
	)
	if m.atRoot() {
		sizeSpec = input
	} else {
		// Inside a reservation the spot is mandatory: OFFSET:SIZE.
		offStr, rest, ok := strings.Cut(input, ":")
		if !ok {
			return m.fail(fmt.Errorf("want OFFSET:SIZE inside a reservation"))
		}
		off, err := strconv.ParseUint(offStr, 0, 64)
		if err != nil {
			return m.fail(fmt.Errorf("bad offset %q: %w", offStr, err))
		}
		offset, fixed, sizeSpec = space.Addr(off), true, rest
	}

	size, err := args.ParseSize(sizeSpec)
	if err != nil {
		return m.fail(err)
	}
	dsCap, err := m.env.RAM().Alloc(size)
	if err != nil {
		return m.fail(err)
	}
	ds, ok := session.Deref[dataspace.Dataspace](dsCap)
	if !ok {
		return m.fail(fmt.Errorf("RAM capability is not a dataspace"))
	}
	addr, err := m.current.Attach(ds, space.AttachOpts{At: offset, Fixed: fixed})
	if err != nil {
		return m.fail(err)
	}

	logger.Info("attached dataspace", "size", args.FormatSize(size), "addr", fmt.Sprintf("%#x", uintptr(addr)))
	m.refreshRows()
	m.statusMessage = fmt.Sprintf("Attached %s at %#x", args.FormatSize(size), uintptr(addr))
	return m, clearStatusAfter(3 * time.Second)
}

func (m Model) applyReserve(input string) (tea.Model, tea.Cmd) {
	size, err := args.ParseSize(input)
	if err != nil {
		return m.fail(err)
	}
	cap, err := m.env.Parent().Session(space.ServiceName, "size="+args.FormatSize(size))
	if err != nil {
		return m.fail(err)
	}
	sub, ok := session.Deref[*space.Space](cap)
	if !ok {
		return m.fail(fmt.Errorf("session capability is not a space"))
	}
	base, err := m.env.RM().Attach(sub, space.AttachOpts{})
	if err != nil {
		m.env.Parent().Close(cap)
		return m.fail(err)
	}
	m.rmCaps[base] = cap

	logger.Info("reserved", "size", args.FormatSize(size), "base", fmt.Sprintf("%#x", uintptr(base)))
	m.refreshRows()
	m.statusMessage = fmt.Sprintf("Reserved %s at %#x", args.FormatSize(size), uintptr(base))
	return m, clearStatusAfter(3 * time.Second)
}

func (m Model) handleDetach() (tea.Model, tea.Cmd) {
	r, ok := m.selectedRegion()
	if !ok {
		m.statusMessage = "Nothing to detach"
		return m, clearStatusAfter(2 * time.Second)
	}

	// A reservation created here owns a session; closing it detaches and
	// tears the nested space down in one step.
	if cap, isSession := m.rmCaps[r.Start]; isSession {
		if err := m.env.Parent().Close(cap); err != nil {
			return m.fail(err)
		}
		delete(m.rmCaps, r.Start)
	} else if err := m.current.Detach(r.Start); err != nil {
		return m.fail(err)
	}

	logger.Info("detached", "start", fmt.Sprintf("%#x", uintptr(r.Start)))
	m.refreshRows()
	m.statusMessage = fmt.Sprintf("Detached %#x", uintptr(r.Start))
	return m, clearStatusAfter(3 * time.Second)
}

func (m Model) handleEnterReservation() (tea.Model, tea.Cmd) {
	r, ok := m.selectedRegion()
	if !ok {
		return m, nil
	}
	sub, isSub := r.Backing.(*space.Space)
	if !isSub {
		m.statusMessage = "Not a reservation"
		return m, clearStatusAfter(2 * time.Second)
	}
	m.current = sub
	m.refreshRows()
	m.statusMessage = fmt.Sprintf("Entered reservation at %#x", uintptr(r.Start))
	return m, clearStatusAfter(2 * time.Second)
}

func (m Model) handleYank() (tea.Model, tea.Cmd) {
	r, ok := m.selectedRegion()
	if !ok {
		return m, nil
	}
	addr := fmt.Sprintf("%#x", uintptr(r.Start))
	if err := clipboard.WriteAll(addr); err != nil {
		return m.fail(err)
	}
	m.statusMessage = "Copied " + addr
	return m, clearStatusAfter(2 * time.Second)
}

func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	logger.Error("operation failed", "error", err)
	m.statusMessage = errorStyle.Render(err.Error())
	return m, clearStatusAfter(5 * time.Second)
}
