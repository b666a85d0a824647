// Package cpu implements the MOS Technology 6502 microprocessor, as used in
// the NES: the register file, the 256-entry dispatch table, interrupt
// handling, and a disassembler that shares the same table.

package cpu

import (
	"fmt"

	"gnes/mask"
	"gnes/mem"
)

// https://www.nesdev.org/obelisk-6502-guide/reference.html
// https://www.nesdev.org/wiki/CPU_ALL

// The interrupt vectors live at the very top of the address space, each a
// little-endian pointer.
const (
	NmiVector   uint16 = 0xfffa
	ResetVector uint16 = 0xfffc
	IrqVector   uint16 = 0xfffe
)

// Stack instructions always access the 01 page (0x0100-0x01ff); the Stack
// register stores the low byte.
const stackBase uint16 = 0x0100

// A Flag is a single bit of the packed status register (aka P register).
// The bit positions here are the single source of truth for the flag
// layout:
//
// 7654 3210
// NVUB DIZC
type Flag byte

const (
	FlagC Flag = 1 << iota // carry
	FlagZ                  // zero
	FlagI                  // interrupt disable
	FlagD                  // decimal; inherited from the 6502, inert on the NES
	FlagB                  // break
	FlagU                  // unused, latched to 1 by the dispatch loop
	FlagV                  // overflow
	FlagN                  // negative
)

// FlagNamed maps a flag letter ('C', 'Z', 'I', 'D', 'B', 'U', 'V', 'N') to
// its bit. An unknown letter is a programmer error and panics.
func FlagNamed(name byte) Flag {
	switch name {
	case 'C':
		return FlagC
	case 'Z':
		return FlagZ
	case 'I':
		return FlagI
	case 'D':
		return FlagD
	case 'B':
		return FlagB
	case 'U':
		return FlagU
	case 'V':
		return FlagV
	case 'N':
		return FlagN
	}
	panic(fmt.Sprintf("cpu: invalid flag name %q", name))
}

// validFlag rejects anything that is not exactly one status bit. Such a
// value can only come from a coding mistake, never from emulated software,
// so this panics instead of returning an error.
func validFlag(f Flag) {
	if f == 0 || f&(f-1) != 0 {
		panic(fmt.Sprintf("cpu: invalid flag %#08b", byte(f)))
	}
}

// The Cpu has no memory of its own aside from a handful of small registers.
// All program and data accesses go through the Bus, which owns the attached
// devices; the Cpu only holds the handle.
type Cpu struct {
	Bus *mem.Bus

	ProgramCounter uint16
	Stack          byte // low byte of the next free stack slot
	Accumulator    byte
	X, Y           byte
	Status         byte

	// per-instruction scratch, shared between the addressing mode and the
	// operation of the instruction being dispatched
	fetched byte   // operand byte sourced by fetch
	addrAbs uint16 // effective address resolved by the addressing mode
	addrRel uint16 // sign-extended branch offset
	opcode  byte   // instruction byte being executed
	cycles  byte   // cycles remaining before the instruction completes

	clockCount uint64
}

// New returns a Cpu wired to the given bus. All registers start at zero;
// call Reset to bring the processor into its power-on state.
func New(bus *mem.Bus) *Cpu {
	return &Cpu{Bus: bus}
}

func (c *Cpu) read(addr uint16) byte {
	return c.Bus.Read(addr)
}

func (c *Cpu) write(addr uint16, data byte) {
	c.Bus.Write(addr, data)
}

// read16 reads a little-endian word: the low byte first, then the high.
func (c *Cpu) read16(addr uint16) uint16 {
	lo := c.read(addr)
	hi := c.read(addr + 1)
	return mask.Word(hi, lo)
}

// GetFlag reports whether the given status bit is set.
func (c *Cpu) GetFlag(f Flag) bool {
	validFlag(f)
	return c.Status&byte(f) != 0
}

// SetFlag sets or clears the given status bit.
func (c *Cpu) SetFlag(f Flag, v bool) {
	validFlag(f)
	if v {
		c.Status |= byte(f)
	} else {
		c.Status &^= byte(f)
	}
}

// setZN updates the zero and negative flags from a result byte, the most
// common flag pattern by far.
func (c *Cpu) setZN(v byte) {
	c.SetFlag(FlagZ, v == 0)
	c.SetFlag(FlagN, mask.Negative(v))
}

// carry returns the carry flag as a 0/1 summand for the ALU.
func (c *Cpu) carry() uint16 {
	if c.GetFlag(FlagC) {
		return 1
	}
	return 0
}

// push stores a byte at the stack pointer and moves it down. The pointer is
// a byte, so it wraps within the stack page rather than escaping it.
func (c *Cpu) push(data byte) {
	c.write(stackBase+uint16(c.Stack), data)
	c.Stack--
}

// pull moves the stack pointer up and reads the byte there.
func (c *Cpu) pull() byte {
	c.Stack++
	return c.read(stackBase + uint16(c.Stack))
}

// pushWord pushes a 16-bit value high byte first, so that pullWord reads it
// back low byte first.
func (c *Cpu) pushWord(w uint16) {
	c.push(mask.Hi(w))
	c.push(mask.Lo(w))
}

func (c *Cpu) pullWord() uint16 {
	lo := c.pull()
	hi := c.pull()
	return mask.Word(hi, lo)
}

// Reset forces the processor into its power-on state: registers cleared,
// stack pointer at 0xfd, only the unused status bit set, and the program
// counter loaded from the reset vector. Resetting takes 8 cycles.
// Reset is idempotent.
func (c *Cpu) Reset() {
	c.Accumulator = 0
	c.X = 0
	c.Y = 0
	c.Stack = 0xfd
	c.Status = byte(FlagU)

	c.ProgramCounter = c.read16(ResetVector)

	c.fetched = 0
	c.addrAbs = 0
	c.addrRel = 0
	c.opcode = 0
	c.cycles = 8
}

// interrupt runs the common IRQ/NMI entry sequence: the return address and
// status go onto the stack (break bit clear, unused bit set), further IRQs
// are masked, and execution continues at the handler the vector points to.
func (c *Cpu) interrupt(vector uint16, cycles byte) {
	c.pushWord(c.ProgramCounter)

	c.SetFlag(FlagB, false)
	c.SetFlag(FlagU, true)
	c.SetFlag(FlagI, true)
	c.push(c.Status)

	c.ProgramCounter = c.read16(vector)
	c.cycles = cycles
}

// Irq requests a maskable interrupt. It is ignored while the interrupt
// disable flag is set; otherwise the handler at 0xfffe/f runs, 7 cycles.
func (c *Cpu) Irq() {
	if c.GetFlag(FlagI) {
		return
	}
	c.interrupt(IrqVector, 7)
}

// Nmi triggers the non-maskable interrupt: same entry protocol as Irq, but
// it cannot be ignored and reads its handler from 0xfffa/b, 8 cycles.
func (c *Cpu) Nmi() {
	c.interrupt(NmiVector, 8)
}

// Clock advances the processor by one cycle. All the work of an instruction
// happens on its first cycle: the opcode is fetched, the addressing mode
// resolves the operand, the operation runs, and the full cycle cost is
// charged up front. The remaining calls just burn the charged cycles so
// that the instruction occupies the same wall-clock span it would on
// hardware.
//
// The page-cross penalty is charged only when both the addressing mode and
// the operation report it: an indexed store takes the same time whether or
// not the index crossed a page, but an indexed load does not.
func (c *Cpu) Clock() {
	if c.cycles == 0 {
		c.opcode = c.read(c.ProgramCounter)

		tracePC := c.ProgramCounter
		traceState := ""
		if traceEnabled {
			traceState = fmt.Sprintf("A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
				c.Accumulator, c.X, c.Y, c.Status, c.Stack, c.clockCount)
		}

		c.SetFlag(FlagU, true)
		c.ProgramCounter++

		op := Opcodes[c.opcode]
		c.cycles = op.Cycles

		crossed := c.decode(op.AddressingMode)
		penalty := op.Instruction(c)
		c.cycles += crossed & penalty

		c.SetFlag(FlagU, true)

		if traceEnabled {
			logger.Log(fmt.Sprintf("%04X  %02X  %s  %s", tracePC, c.opcode, op.Name, traceState))
		}
	}

	c.clockCount++
	c.cycles--
}

// Complete reports whether the current instruction has finished, i.e. the
// next Clock call will fetch a new opcode.
func (c *Cpu) Complete() bool {
	return c.cycles == 0
}

// Step runs the clock until the instruction boundary and reports the number
// of cycles consumed. Debuggers and tests use it to advance one whole
// instruction at a time.
func (c *Cpu) Step() int {
	n := 0
	for {
		c.Clock()
		n++
		if c.Complete() {
			return n
		}
	}
}

// ClockCount returns the total number of cycles ticked since power-on.
func (c *Cpu) ClockCount() uint64 {
	return c.clockCount
}

// fetch sources the operand for the running operation. With an implied or
// accumulator mode the value was already primed from the accumulator by
// decode; every other mode reads through the effective address.
func (c *Cpu) fetch() byte {
	switch Opcodes[c.opcode].AddressingMode {
	case Implied, Accumulator:
	default:
		c.fetched = c.read(c.addrAbs)
	}
	return c.fetched
}
