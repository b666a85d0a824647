package cpu

import "gnes/mask"

// how to read the Obelisk guide:
// A,Z,N = A&M
// [target],[flags...] = [op]

// decode resolves the addressing mode of the current instruction. It
// advances the program counter past the operand bytes, sets addrAbs (or
// addrRel for branches, or neither for implied), and reports whether the
// computed address crossed a page while indexing. That report becomes an
// extra cycle only if the operation authorizes it too.
func (c *Cpu) decode(a AddressingMode) byte {
	switch a {

	case Implied, Accumulator:
		// no memory operand; prime the ALU input from the accumulator
		// for instructions like ASL A and PHA
		c.fetched = c.Accumulator

	case Immediate:
		// the operand is the byte right after the opcode
		c.addrAbs = c.ProgramCounter
		c.ProgramCounter++

	case ZeroPage:
		c.addrAbs = uint16(c.read(c.ProgramCounter))
		c.ProgramCounter++

	case ZeroPageX:
		// the byte-wide add wraps within page 0; 0xff + 2 lands on
		// 0x0001, not 0x0101
		c.addrAbs = uint16(c.read(c.ProgramCounter) + c.X)
		c.ProgramCounter++

	case ZeroPageY:
		c.addrAbs = uint16(c.read(c.ProgramCounter) + c.Y)
		c.ProgramCounter++

	case Relative:
		// branch offsets are signed; widen to 16 bits so that plain
		// modular addition moves the PC in either direction
		c.addrRel = mask.SignExtend(c.read(c.ProgramCounter))
		c.ProgramCounter++

	case Absolute:
		c.addrAbs = c.read16(c.ProgramCounter)
		c.ProgramCounter += 2

	case AbsoluteX:
		base := c.read16(c.ProgramCounter)
		c.ProgramCounter += 2
		c.addrAbs = base + uint16(c.X)
		if !mask.SamePage(c.addrAbs, base) {
			return 1
		}

	case AbsoluteY:
		base := c.read16(c.ProgramCounter)
		c.ProgramCounter += 2
		c.addrAbs = base + uint16(c.Y)
		if !mask.SamePage(c.addrAbs, base) {
			return 1
		}

	case Indirect:
		ptr := c.read16(c.ProgramCounter)
		c.ProgramCounter += 2

		lo := c.read(ptr)
		var hi byte
		if mask.Lo(ptr) == 0xff {
			// the chip increments only the low pointer byte, so a
			// pointer ending in 0xff wraps within its own page
			// instead of crossing into the next
			hi = c.read(ptr & 0xff00)
		} else {
			hi = c.read(ptr + 1)
		}
		c.addrAbs = mask.Word(hi, lo)

	case IndirectX:
		t := c.read(c.ProgramCounter)
		c.ProgramCounter++

		// both pointer bytes are fetched from page 0, with all the
		// arithmetic wrapping there
		lo := c.read(uint16(t + c.X))
		hi := c.read(uint16(t + c.X + 1))
		c.addrAbs = mask.Word(hi, lo)

	case IndirectY:
		t := c.read(c.ProgramCounter)
		c.ProgramCounter++

		// unlike IndirectX, the Y offset is applied after the
		// indirection, so the final add can cross a page
		lo := c.read(uint16(t))
		hi := c.read(uint16(t + 1))
		base := mask.Word(hi, lo)
		c.addrAbs = base + uint16(c.Y)
		if !mask.SamePage(c.addrAbs, base) {
			return 1
		}
	}

	return 0
}

// branch implements the shared tail of the eight branch instructions: a
// taken branch costs one extra cycle, and a second one if the target sits
// in a different page than the updated PC.
func (c *Cpu) branch(taken bool) byte {
	if !taken {
		return 0
	}
	c.cycles++
	c.addrAbs = c.ProgramCounter + c.addrRel
	if !mask.SamePage(c.addrAbs, c.ProgramCounter) {
		c.cycles++
	}
	c.ProgramCounter = c.addrAbs
	return 0
}

// compare implements CMP/CPX/CPY: a subtraction whose result is dropped,
// keeping only the flags.
func (c *Cpu) compare(reg byte) {
	m := c.fetch()
	c.SetFlag(FlagC, reg >= m)
	c.setZN(reg - m)
}

// shiftResult routes the result of a shift or rotate: accumulator mode
// targets A, every other mode writes back through the effective address.
func (c *Cpu) shiftResult(v byte) {
	switch Opcodes[c.opcode].AddressingMode {
	case Implied, Accumulator:
		c.Accumulator = v
	default:
		c.write(c.addrAbs, v)
	}
}

// ADC - Add with Carry
//
// The sum is formed in 16 bits so the carry out is visible in bit 8. The
// overflow flag watches the sign bits instead: adding two operands of the
// same sign must not produce a result of the opposite sign, hence
// V = ~(A^M) & (A^R) on the high bits.
func (c *Cpu) ADC() byte {
	m := uint16(c.fetch())
	a := uint16(c.Accumulator)
	t := a + m + c.carry()

	c.SetFlag(FlagC, t > 0xff)
	c.SetFlag(FlagV, (^(a^m)&(a^t))&0x0080 != 0)

	c.Accumulator = mask.Lo(t)
	c.setZN(c.Accumulator)
	return 1
}

// SBC - Subtract with Carry
//
// Subtraction reuses the adder: A - M - (1-C) == A + ~M + C, so the operand
// is ones'-complemented and pushed through the ADC data path. Decimal mode
// would adjust here on a real 6502; the NES variant has no BCD unit, so
// the D flag is ignored.
func (c *Cpu) SBC() byte {
	m := uint16(c.fetch()) ^ 0x00ff
	a := uint16(c.Accumulator)
	t := a + m + c.carry()

	c.SetFlag(FlagC, t > 0xff)
	c.SetFlag(FlagV, ((t^a)&(t^m))&0x0080 != 0)

	c.Accumulator = mask.Lo(t)
	c.setZN(c.Accumulator)
	return 1
}

// AND - Logical AND
func (c *Cpu) AND() byte {
	c.Accumulator &= c.fetch()
	c.setZN(c.Accumulator)
	return 1
}

// ORA - Logical Inclusive OR
func (c *Cpu) ORA() byte {
	c.Accumulator |= c.fetch()
	c.setZN(c.Accumulator)
	return 1
}

// EOR - Exclusive OR
func (c *Cpu) EOR() byte {
	c.Accumulator ^= c.fetch()
	c.setZN(c.Accumulator)
	return 1
}

// ASL - Arithmetic Shift Left
func (c *Cpu) ASL() byte {
	t := uint16(c.fetch()) << 1
	c.SetFlag(FlagC, t > 0xff) // old bit 7
	out := mask.Lo(t)
	c.setZN(out)
	c.shiftResult(out)
	return 0
}

// LSR - Logical Shift Right
func (c *Cpu) LSR() byte {
	m := c.fetch()
	c.SetFlag(FlagC, mask.IsSet(m, mask.B0)) // old bit 0
	out := m >> 1
	c.setZN(out)
	c.shiftResult(out)
	return 0
}

// ROL - Rotate Left
func (c *Cpu) ROL() byte {
	m := c.fetch()
	out := m<<1 | mask.Lo(c.carry())
	c.SetFlag(FlagC, mask.IsSet(m, mask.B7))
	c.setZN(out)
	c.shiftResult(out)
	return 0
}

// ROR - Rotate Right
func (c *Cpu) ROR() byte {
	m := c.fetch()
	out := m>>1 | mask.Lo(c.carry())<<7
	c.SetFlag(FlagC, mask.IsSet(m, mask.B0))
	c.setZN(out)
	c.shiftResult(out)
	return 0
}

// BIT - Bit Test
//
// The operand is ANDed with the accumulator for the zero flag only; N and V
// come straight from bits 7 and 6 of the operand.
func (c *Cpu) BIT() byte {
	m := c.fetch()
	c.SetFlag(FlagZ, c.Accumulator&m == 0)
	c.SetFlag(FlagV, mask.IsSet(m, mask.B6))
	c.SetFlag(FlagN, mask.IsSet(m, mask.B7))
	return 0
}

// CMP - Compare Accumulator
func (c *Cpu) CMP() byte {
	c.compare(c.Accumulator)
	return 1
}

// CPX - Compare X Register
func (c *Cpu) CPX() byte {
	c.compare(c.X)
	return 0
}

// CPY - Compare Y Register
func (c *Cpu) CPY() byte {
	c.compare(c.Y)
	return 0
}

// LDA - Load Accumulator
func (c *Cpu) LDA() byte {
	c.Accumulator = c.fetch()
	c.setZN(c.Accumulator)
	return 1
}

// LDX - Load X Register
func (c *Cpu) LDX() byte {
	c.X = c.fetch()
	c.setZN(c.X)
	return 1
}

// LDY - Load Y Register
func (c *Cpu) LDY() byte {
	c.Y = c.fetch()
	c.setZN(c.Y)
	return 1
}

// STA - Store Accumulator
func (c *Cpu) STA() byte {
	c.write(c.addrAbs, c.Accumulator)
	return 0
}

// STX - Store X Register
func (c *Cpu) STX() byte {
	c.write(c.addrAbs, c.X)
	return 0
}

// STY - Store Y Register
func (c *Cpu) STY() byte {
	c.write(c.addrAbs, c.Y)
	return 0
}

// INC - Increment Memory
func (c *Cpu) INC() byte {
	v := c.fetch() + 1
	c.write(c.addrAbs, v)
	c.setZN(v)
	return 0
}

// DEC - Decrement Memory
func (c *Cpu) DEC() byte {
	v := c.fetch() - 1
	c.write(c.addrAbs, v)
	c.setZN(v)
	return 0
}

// INX - Increment X Register
func (c *Cpu) INX() byte {
	c.X++
	c.setZN(c.X)
	return 0
}

// INY - Increment Y Register
func (c *Cpu) INY() byte {
	c.Y++
	c.setZN(c.Y)
	return 0
}

// DEX - Decrement X Register
func (c *Cpu) DEX() byte {
	c.X--
	c.setZN(c.X)
	return 0
}

// DEY - Decrement Y Register
func (c *Cpu) DEY() byte {
	c.Y--
	c.setZN(c.Y)
	return 0
}

// BCC - Branch if Carry Clear
func (c *Cpu) BCC() byte { return c.branch(!c.GetFlag(FlagC)) }

// BCS - Branch if Carry Set
func (c *Cpu) BCS() byte { return c.branch(c.GetFlag(FlagC)) }

// BNE - Branch if Not Equal
func (c *Cpu) BNE() byte { return c.branch(!c.GetFlag(FlagZ)) }

// BEQ - Branch if Equal
func (c *Cpu) BEQ() byte { return c.branch(c.GetFlag(FlagZ)) }

// BPL - Branch if Positive
func (c *Cpu) BPL() byte { return c.branch(!c.GetFlag(FlagN)) }

// BMI - Branch if Minus
func (c *Cpu) BMI() byte { return c.branch(c.GetFlag(FlagN)) }

// BVC - Branch if Overflow Clear
func (c *Cpu) BVC() byte { return c.branch(!c.GetFlag(FlagV)) }

// BVS - Branch if Overflow Set
func (c *Cpu) BVS() byte { return c.branch(c.GetFlag(FlagV)) }

// JMP - Jump
func (c *Cpu) JMP() byte {
	c.ProgramCounter = c.addrAbs
	return 0
}

// JSR - Jump to Subroutine
//
// The pushed return address is the last byte of the JSR instruction, not
// the byte after it; RTS compensates by adding one after pulling.
func (c *Cpu) JSR() byte {
	c.pushWord(c.ProgramCounter - 1)
	c.ProgramCounter = c.addrAbs
	return 0
}

// RTS - Return from Subroutine
func (c *Cpu) RTS() byte {
	c.ProgramCounter = c.pullWord() + 1
	return 0
}

// BRK - Force Interrupt
//
// BRK is a two-byte instruction: the byte after the opcode is padding, so
// the pushed return address skips it. The status goes onto the stack with
// the break bit set, which is how the handler can tell a BRK from a
// hardware IRQ.
func (c *Cpu) BRK() byte {
	c.ProgramCounter++

	c.SetFlag(FlagI, true)
	c.pushWord(c.ProgramCounter)

	c.SetFlag(FlagB, true)
	c.push(c.Status)
	c.SetFlag(FlagB, false)

	c.ProgramCounter = c.read16(IrqVector)
	return 0
}

// RTI - Return from Interrupt
func (c *Cpu) RTI() byte {
	c.Status = c.pull()
	c.Status &^= byte(FlagB)
	c.Status &^= byte(FlagU)
	c.ProgramCounter = c.pullWord()
	return 0
}

// PHA - Push Accumulator
func (c *Cpu) PHA() byte {
	c.push(c.Accumulator)
	return 0
}

// PLA - Pull Accumulator
func (c *Cpu) PLA() byte {
	c.Accumulator = c.pull()
	c.setZN(c.Accumulator)
	return 0
}

// PHP - Push Processor Status
//
// The stacked copy always shows B and U set; the kernel clears both in the
// live register, and the dispatch loop then sets U again.
func (c *Cpu) PHP() byte {
	c.push(c.Status | byte(FlagB) | byte(FlagU))
	c.SetFlag(FlagB, false)
	c.SetFlag(FlagU, false)
	return 0
}

// PLP - Pull Processor Status
func (c *Cpu) PLP() byte {
	c.Status = c.pull()
	c.SetFlag(FlagU, true)
	return 0
}

// CLC - Clear Carry Flag
func (c *Cpu) CLC() byte {
	c.SetFlag(FlagC, false)
	return 0
}

// SEC - Set Carry Flag
func (c *Cpu) SEC() byte {
	c.SetFlag(FlagC, true)
	return 0
}

// CLI - Clear Interrupt Disable
func (c *Cpu) CLI() byte {
	c.SetFlag(FlagI, false)
	return 0
}

// SEI - Set Interrupt Disable
func (c *Cpu) SEI() byte {
	c.SetFlag(FlagI, true)
	return 0
}

// CLV - Clear Overflow Flag
func (c *Cpu) CLV() byte {
	c.SetFlag(FlagV, false)
	return 0
}

// CLD - Clear Decimal Mode
func (c *Cpu) CLD() byte {
	c.SetFlag(FlagD, false)
	return 0
}

// SED - Set Decimal Flag
func (c *Cpu) SED() byte {
	c.SetFlag(FlagD, true)
	return 0
}

// TAX - Transfer Accumulator to X
func (c *Cpu) TAX() byte {
	c.X = c.Accumulator
	c.setZN(c.X)
	return 0
}

// TAY - Transfer Accumulator to Y
func (c *Cpu) TAY() byte {
	c.Y = c.Accumulator
	c.setZN(c.Y)
	return 0
}

// TXA - Transfer X to Accumulator
func (c *Cpu) TXA() byte {
	c.Accumulator = c.X
	c.setZN(c.Accumulator)
	return 0
}

// TYA - Transfer Y to Accumulator
func (c *Cpu) TYA() byte {
	c.Accumulator = c.Y
	c.setZN(c.Accumulator)
	return 0
}

// TSX - Transfer Stack Pointer to X
func (c *Cpu) TSX() byte {
	c.X = c.Stack
	c.setZN(c.X)
	return 0
}

// TXS - Transfer X to Stack Pointer
//
// The only transfer that updates no flags.
func (c *Cpu) TXS() byte {
	c.Stack = c.X
	return 0
}

// NOP - No Operation
//
// The six documented three-byte illegal NOPs (0x1c, 0x3c, 0x5c, 0x7c,
// 0xdc, 0xfc) index with X and pay the page-cross cycle like any
// absolute,X read; the official 0xea never does.
func (c *Cpu) NOP() byte {
	switch c.opcode {
	case 0x1c, 0x3c, 0x5c, 0x7c, 0xdc, 0xfc:
		return 1
	}
	return 0
}

// XXX catches the remaining unofficial opcodes. They behave as two-cycle
// no-ops; a real chip would happily execute them with stranger effects.
func (c *Cpu) XXX() byte {
	return 0
}
