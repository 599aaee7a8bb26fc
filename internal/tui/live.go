// Package tui provides the live terminal view of a running forward
// simulation.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/seisfd/internal/fdtd"
	"github.com/san-kum/seisfd/internal/viz"
)

const (
	fieldWidth      = 72
	fieldHeight     = 20
	historyCapacity = 400
)

// Frame carries one probed pressure snapshot from the simulation goroutine.
type Frame struct {
	It int
	T  float64
	P  []float64
}

// DoneMsg ends the view when the simulation finishes.
type DoneMsg struct {
	Err error
}

// Model renders frames streamed over a channel while the experiment runs.
type Model struct {
	frames  <-chan tea.Msg
	nz, nx  int
	dz, dx  float64
	cur     Frame
	energy  []float64
	lastErr error
	done    bool
}

func NewModel(nz, nx int, dz, dx float64, frames <-chan tea.Msg) Model {
	return Model{
		frames: frames,
		nz:     nz,
		nx:     nx,
		dz:     dz,
		dx:     dx,
		energy: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd { return m.wait() }

func (m Model) wait() tea.Cmd {
	return func() tea.Msg { return <-m.frames }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case Frame:
		m.cur = msg
		m.energy = append(m.energy, fdtd.Energy(msg.P, m.dz, m.dx))
		if len(m.energy) > historyCapacity {
			m.energy = m.energy[1:]
		}
		return m, m.wait()
	case DoneMsg:
		m.done = true
		m.lastErr = msg.Err
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	s := viz.Header("seisfd live") + "\n"
	if m.cur.P != nil {
		s += viz.Field(m.cur.P, m.nz, m.nx, fieldWidth, fieldHeight)
		s += fmt.Sprintf("step %d  t=%.4fs\n", m.cur.It, m.cur.T)
	} else {
		s += viz.Dim("waiting for first frame...") + "\n"
	}
	if len(m.energy) > 1 {
		s += asciigraph.Plot(m.energy, asciigraph.Height(5), asciigraph.Width(fieldWidth), asciigraph.Caption("field energy")) + "\n"
	}
	if m.done {
		if m.lastErr != nil {
			s += viz.Dim("finished with error: "+m.lastErr.Error()) + "\n"
		} else {
			s += viz.Dim("finished") + "\n"
		}
	}
	s += viz.Dim("q: quit")
	return s
}
