package cpu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"
)

// The monitor is an interactive TUI wrapped around a Cpu. It consumes only
// the public surface (Step, Reset, Irq, Nmi, Disassemble, Bus.Peek), so the
// core neither knows nor cares whether one is attached.

type model struct {
	cpu    *Cpu
	dis    *Disassembly
	prevPC uint16
}

var currentLine = lipgloss.NewStyle().Reverse(true)

func (m model) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ", "j":
			m.prevPC = m.cpu.ProgramCounter
			m.cpu.Step()

		case "r":
			m.cpu.Reset()

		case "i":
			m.cpu.Irq()

		case "n":
			m.cpu.Nmi()
		}
	}
	return m, nil
}

// renderPage renders one 16-byte row of memory. The byte at the current PC
// is bracketed.
func (m model) renderPage(start uint16) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04x | ", start)
	for i := uint16(0); i < 16; i++ {
		b := m.cpu.Bus.Peek(start + i)
		if start+i == m.cpu.ProgramCounter {
			fmt.Fprintf(&sb, "[%02x] ", b)
		} else {
			fmt.Fprintf(&sb, " %02x  ", b)
		}
	}
	return sb.String()
}

func (m model) pageTable() string {
	header := "addr | "
	for b := 0; b < 16; b++ {
		header += fmt.Sprintf("  %01x  ", b)
	}

	rows := []string{header}

	// zero page, the stack page, then the PC's row and the four after it
	starts := []uint16{0x0000, 0x0010, 0x0020, 0x0030}
	starts = append(starts, stackBase, stackBase+0xf0)
	pcRow := m.cpu.ProgramCounter &^ 0x000f
	for i := uint16(0); i < 5; i++ {
		starts = append(starts, pcRow+16*i)
	}
	for _, s := range starts {
		rows = append(rows, m.renderPage(s))
	}
	return strings.Join(rows, "\n")
}

func (m model) status() string {
	var flags strings.Builder
	for _, name := range []byte{'N', 'V', 'U', 'B', 'D', 'I', 'Z', 'C'} {
		if m.cpu.GetFlag(FlagNamed(name)) {
			flags.WriteString("/ ")
		} else {
			flags.WriteString("  ")
		}
	}
	return fmt.Sprintf(`
PC: %04x (%04x)
SP: %02x
 A: %02x
 X: %02x
 Y: %02x
 P: %02x
N V U B D I Z C
`,
		m.cpu.ProgramCounter,
		m.prevPC,
		m.cpu.Stack,
		m.cpu.Accumulator,
		m.cpu.X,
		m.cpu.Y,
		m.cpu.Status,
	) + flags.String()
}

func (m model) listing() string {
	lines := m.dis.Around(m.cpu.ProgramCounter, 12)
	for i, line := range lines {
		if strings.HasPrefix(line, fmt.Sprintf("$%04X:", m.cpu.ProgramCounter)) {
			lines[i] = currentLine.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// View renders the monitor: memory on the left, registers and the listing
// on the right, and a dump of the current dispatch table entry below.
func (m model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.pageTable(),
			lipgloss.JoinVertical(lipgloss.Left, m.status(), "", m.listing()),
		),
		"",
		spew.Sdump(Opcodes[m.cpu.Bus.Peek(m.cpu.ProgramCounter)]),
		"space/j step · r reset · i irq · n nmi · q quit",
	)
}

// Debug starts an interactive monitor over the Cpu's current state. The
// disassembly covers the page the PC starts in through the top of memory,
// which is where program code lives in practice.
func (c *Cpu) Debug() error {
	start := c.ProgramCounter & 0xff00
	m := model{
		cpu: c,
		dis: c.Disassemble(start, 0xffff),
	}
	_, err := tea.NewProgram(m).Run()
	return err
}
