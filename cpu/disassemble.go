package cpu

import (
	"fmt"
	"strings"

	"gnes/mask"
)

// A Disassembly maps instruction start addresses to rendered lines. Index
// holds the start addresses in ascending order; not every address appears,
// since instructions are one to three bytes long.
type Disassembly struct {
	Index []uint16
	Lines map[uint16]string
}

// Around returns up to n lines centred on addr, for showing a listing
// window that follows the program counter. If addr falls inside an
// instruction, the window is centred on the next line after it.
func (d *Disassembly) Around(addr uint16, n int) []string {
	at := len(d.Index)
	for i, a := range d.Index {
		if a >= addr {
			at = i
			break
		}
	}
	lo := at - n/2
	if lo < 0 {
		lo = 0
	}
	hi := lo + n
	if hi > len(d.Index) {
		hi = len(d.Index)
	}
	lines := make([]string, 0, hi-lo)
	for _, a := range d.Index[lo:hi] {
		lines = append(lines, d.Lines[a])
	}
	return lines
}

// Disassemble renders the instructions in the inclusive window [start,
// stop] into human-readable form, keyed by instruction start address. It
// reads through the bus Peek path only, so no device side effects fire and
// no CPU state changes; the dispatch table supplies the mnemonic, operand
// length and rendering for each opcode. Bytes that decode to no documented
// instruction come out as "???".
func (c *Cpu) Disassemble(start uint16, stop uint16) *Disassembly {
	dis := &Disassembly{Lines: make(map[uint16]string)}

	// wider than uint16 so the loop terminates when stop is 0xffff
	addr := uint32(start)
	for addr <= uint32(stop) {
		lineAddr := uint16(addr)

		peek := func() byte {
			b := c.Bus.Peek(uint16(addr))
			addr++
			return b
		}

		op := Opcodes[peek()]

		var sb strings.Builder
		fmt.Fprintf(&sb, "$%04X: %s ", lineAddr, op.Name)

		switch op.AddressingMode {
		case Implied:
		case Accumulator:
			sb.WriteString("A ")
		case Immediate:
			fmt.Fprintf(&sb, "#$%02X ", peek())
		case ZeroPage:
			fmt.Fprintf(&sb, "$%02X ", peek())
		case ZeroPageX:
			fmt.Fprintf(&sb, "$%02X, X ", peek())
		case ZeroPageY:
			fmt.Fprintf(&sb, "$%02X, Y ", peek())
		case IndirectX:
			fmt.Fprintf(&sb, "($%02X, X) ", peek())
		case IndirectY:
			fmt.Fprintf(&sb, "($%02X), Y ", peek())
		case Relative:
			// show both the raw offset and the resolved target
			value := peek()
			target := uint16(addr) + mask.SignExtend(value)
			fmt.Fprintf(&sb, "$%02X [$%04X] ", value, target)
		case Absolute:
			lo, hi := peek(), peek()
			fmt.Fprintf(&sb, "$%04X ", mask.Word(hi, lo))
		case AbsoluteX:
			lo, hi := peek(), peek()
			fmt.Fprintf(&sb, "$%04X, X ", mask.Word(hi, lo))
		case AbsoluteY:
			lo, hi := peek(), peek()
			fmt.Fprintf(&sb, "$%04X, Y ", mask.Word(hi, lo))
		case Indirect:
			lo, hi := peek(), peek()
			fmt.Fprintf(&sb, "($%04X) ", mask.Word(hi, lo))
		}

		fmt.Fprintf(&sb, "{%s}", op.AddressingMode)

		dis.Index = append(dis.Index, lineAddr)
		dis.Lines[lineAddr] = sb.String()
	}

	return dis
}
