package cpu

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"

	"gnes/mem"
)

// this program multiplies 10 by 3 by repeated addition. the end state
// should be A=0x1e (30), X=3, Y=0, and page 0 holding [0a 03 1e]. once
// done, it idles on three NOPs at 0x8019.
const multiplyProgram = "A2 0A 8E 00 00 A2 03 8E 01 00 AC 00 00 A9 00 18 6D 01 00 88 D0 FA 8D 02 00 EA EA EA"

// boot assembles a flat 64 kB board with the program loaded at 0x8000, the
// reset vector pointing there, and the Cpu already past its 8-cycle reset
// sequence.
func boot(t *testing.T, program string) (*Cpu, *mem.Flat) {
	t.Helper()

	flat := mem.NewFlat()
	bus := mem.NewBus()
	assert.NoError(t, bus.Register(flat))
	assert.NoError(t, flat.LoadHex(0x8000, program))
	flat.SetVector(ResetVector, 0x8000)

	c := New(bus)
	c.Reset()
	for !c.Complete() {
		c.Clock()
	}
	return c, flat
}

// registers is the exported snapshot used for state comparisons.
type registers struct {
	PC      uint16
	SP      byte
	A, X, Y byte
	P       byte
}

func snapshot(c *Cpu) registers {
	return registers{PC: c.ProgramCounter, SP: c.Stack, A: c.Accumulator, X: c.X, Y: c.Y, P: c.Status}
}

func TestLdaImmediate(t *testing.T) {
	c, _ := boot(t, "A9 42")

	cycles := c.Step()

	assert.Equal(t, c.Accumulator, byte(0x42))
	assert.False(t, c.GetFlag(FlagZ))
	assert.False(t, c.GetFlag(FlagN))
	assert.Equal(t, c.ProgramCounter, uint16(0x8002))
	assert.Equal(t, cycles, 2)
}

func TestLdaZeroFlag(t *testing.T) {
	c, _ := boot(t, "A9 00")

	c.Step()

	assert.Equal(t, c.Accumulator, byte(0x00))
	assert.True(t, c.GetFlag(FlagZ))
	assert.False(t, c.GetFlag(FlagN))
}

func TestAslShiftsCarryOut(t *testing.T) {
	// LDA #$80; ASL A
	c, _ := boot(t, "A9 80 0A")

	c.Step()
	c.Step()

	assert.Equal(t, c.Accumulator, byte(0x00))
	assert.True(t, c.GetFlag(FlagC))
	assert.True(t, c.GetFlag(FlagZ))
	assert.False(t, c.GetFlag(FlagN))
}

func TestAdcSignedOverflow(t *testing.T) {
	// CLC; LDA #$7F; ADC #$01 -- +127 + 1 wraps to -128
	c, _ := boot(t, "18 A9 7F 69 01")

	c.Step()
	c.Step()
	c.Step()

	assert.Equal(t, c.Accumulator, byte(0x80))
	assert.True(t, c.GetFlag(FlagV))
	assert.True(t, c.GetFlag(FlagN))
	assert.False(t, c.GetFlag(FlagC))
	assert.False(t, c.GetFlag(FlagZ))
}

func TestJsrPushesReturnAddress(t *testing.T) {
	// LDA #$01; JSR $1234
	c, flat := boot(t, "A9 01 20 34 12")

	c.Step()
	c.Step()

	assert.Equal(t, c.ProgramCounter, uint16(0x1234))
	assert.Equal(t, c.Stack, byte(0xfb))
	// JSR pushes PC-1 of the return point, high byte first
	assert.Equal(t, flat.Peek(0x01fd), byte(0x80))
	assert.Equal(t, flat.Peek(0x01fc), byte(0x04))
}

func TestMultiplyProgram(t *testing.T) {
	c, flat := boot(t, multiplyProgram)

	// the setup instructions, one at a time
	for _, want := range []registers{
		{PC: 0x8002, SP: 0xfd, X: 0x0a},             // LDX #$0A
		{PC: 0x8005, SP: 0xfd, X: 0x0a},             // STX $0000
		{PC: 0x8007, SP: 0xfd, X: 0x03},             // LDX #$03
		{PC: 0x800a, SP: 0xfd, X: 0x03},             // STX $0001
		{PC: 0x800d, SP: 0xfd, X: 0x03, Y: 0x0a},    // LDY $0000
		{PC: 0x800f, SP: 0xfd, X: 0x03, Y: 0x0a},    // LDA #$00
		{PC: 0x8010, SP: 0xfd, X: 0x03, Y: 0x0a},    // CLC
	} {
		c.Step()
		got := snapshot(c)
		got.P = 0 // flag progression is covered elsewhere
		assert.Equal(t, got, want)
	}

	// run the add/decrement loop to the NOP sled
	for i := 0; c.ProgramCounter != 0x8019 && i < 100; i++ {
		c.Step()
	}

	assert.Equal(t, c.ProgramCounter, uint16(0x8019))
	assert.Equal(t, c.Accumulator, byte(30))
	assert.Equal(t, c.X, byte(3))
	assert.Equal(t, c.Y, byte(0))
	assert.Equal(t, flat.Peek(0x0000), byte(10))
	assert.Equal(t, flat.Peek(0x0001), byte(3))
	assert.Equal(t, flat.Peek(0x0002), byte(30))
}

func TestResetState(t *testing.T) {
	c, _ := boot(t, multiplyProgram)

	// disturb the machine, then reset
	for i := 0; i < 10; i++ {
		c.Step()
	}
	c.Reset()
	for !c.Complete() {
		c.Clock()
	}

	assert.Equal(t, c.ProgramCounter, uint16(0x8000)) // from the vector
	assert.Equal(t, c.Stack, byte(0xfd))
	assert.True(t, c.GetFlag(FlagU))
	assert.Equal(t, c.Status, byte(FlagU))
	assert.Equal(t, c.Accumulator, byte(0))

	// resetting again must land in the identical state
	first := snapshot(c)
	c.Reset()
	for !c.Complete() {
		c.Clock()
	}
	if diff := deep.Equal(first, snapshot(c)); diff != nil {
		t.Error(diff)
	}
}

// Every opcode must advance the PC by its own length, except the
// control-flow instructions that replace it outright. Branches count too,
// as long as they are not taken.
func TestPcAdvance(t *testing.T) {
	jumps := map[string]bool{"JMP": true, "JSR": true, "RTS": true, "RTI": true, "BRK": true}
	holdOff := map[string]struct {
		f Flag
		v bool
	}{
		"BCC": {FlagC, true}, "BCS": {FlagC, false},
		"BNE": {FlagZ, true}, "BEQ": {FlagZ, false},
		"BPL": {FlagN, true}, "BMI": {FlagN, false},
		"BVC": {FlagV, true}, "BVS": {FlagV, false},
	}

	for value := 0; value < 256; value++ {
		op := Opcodes[value]
		if jumps[op.Name] {
			continue
		}

		c, flat := boot(t, "")
		flat.Load(0x8000, []byte{byte(value), 0x10, 0x02})
		if hold, ok := holdOff[op.Name]; ok {
			c.SetFlag(hold.f, hold.v)
		}

		c.Step()

		want := 0x8000 + 1 + uint16(op.AddressingMode.operandBytes())
		assert.Equal(t, c.ProgramCounter, want,
			"opcode %02X (%s {%s})", value, op.Name, op.AddressingMode)
		assert.True(t, c.GetFlag(FlagU),
			"U must be set after dispatching %02X", value)
	}
}

func TestCycleCounts(t *testing.T) {
	for _, tc := range []struct {
		name    string
		program string
		steps   int
		want    int // cycles of the final step
	}{
		{"LDA immediate", "A9 42", 1, 2},
		{"LDA absolute", "AD 00 02", 1, 4},
		{"LDA abs,X same page", "A2 01 BD 00 02", 2, 4},
		{"LDA abs,X page crossed", "A2 01 BD FF 00", 2, 5},
		{"STA abs,X never pays the penalty", "A2 01 9D FF 00", 2, 5},
		{"branch not taken", "F0 05", 1, 2},
		{"branch taken, same page", "D0 05", 1, 3},
		{"branch taken, page crossed", "D0 80", 1, 4},
		{"JSR", "20 34 12", 1, 6},
		{"illegal NOP abs,X same page", "A2 01 1C 00 02", 2, 4},
		{"illegal NOP abs,X page crossed", "A2 01 1C FF 00", 2, 5},
	} {
		c, _ := boot(t, tc.program)
		got := 0
		for i := 0; i < tc.steps; i++ {
			got = c.Step()
		}
		assert.Equal(t, got, tc.want, tc.name)
	}
}

func TestIzyPageCrossCycle(t *testing.T) {
	// LDY #$01; LDA ($10),Y with the base at 0x00ff, so +Y crosses
	c, flat := boot(t, "A0 01 B1 10")
	flat.Write(0x0010, 0xff)
	flat.Write(0x0011, 0x00)

	c.Step()
	assert.Equal(t, c.Step(), 6) // 5 base + 1 cross
}

func TestIndirectJmpPageWrapBug(t *testing.T) {
	// JMP ($02FF): the high target byte comes from 0x0200, not 0x0300
	c, flat := boot(t, "6C FF 02")
	flat.Write(0x02ff, 0x34)
	flat.Write(0x0300, 0xaa)
	flat.Write(0x0200, 0x12)

	c.Step()
	assert.Equal(t, c.ProgramCounter, uint16(0x1234))
}

func TestIndirectJmpNormal(t *testing.T) {
	c, flat := boot(t, "6C 00 03")
	flat.Write(0x0300, 0xcd)
	flat.Write(0x0301, 0xab)

	c.Step()
	assert.Equal(t, c.ProgramCounter, uint16(0xabcd))
}

func TestIndirectXPointerWrapsInPageZero(t *testing.T) {
	// LDX #$05; LDA ($FD,X): 0xfd+5 wraps to 0x02
	c, flat := boot(t, "A2 05 A1 FD")
	flat.Write(0x0002, 0x00)
	flat.Write(0x0003, 0x04)
	flat.Write(0x0400, 0x99)

	c.Step()
	c.Step()
	assert.Equal(t, c.Accumulator, byte(0x99))
}

func TestIndirectYPointerWrapsInPageZero(t *testing.T) {
	// LDY #$02; LDA ($FF),Y: the high pointer byte is read from 0x00
	c, flat := boot(t, "A0 02 B1 FF")
	flat.Write(0x00ff, 0x00)
	flat.Write(0x0000, 0x04)
	flat.Write(0x0402, 0x77)

	c.Step()
	c.Step()
	assert.Equal(t, c.Accumulator, byte(0x77))
}

func TestPushPullRoundTrip(t *testing.T) {
	// LDA #$37; PHA; LDA #$00; PLA
	c, _ := boot(t, "A9 37 48 A9 00 68")
	before := c.Stack

	for i := 0; i < 4; i++ {
		c.Step()
	}

	assert.Equal(t, c.Accumulator, byte(0x37))
	assert.Equal(t, c.Stack, before)
}

func TestStackPointerWraps(t *testing.T) {
	c, _ := boot(t, "")
	c.Stack = 0x00
	c.push(0xab)
	assert.Equal(t, c.Stack, byte(0xff))
	assert.Equal(t, c.pull(), byte(0xab))
	assert.Equal(t, c.Stack, byte(0x00))
}

// ADC then SBC with the same operand restores the accumulator, provided the
// second carry-in is the borrow complement of the first.
func TestAdcSbcChain(t *testing.T) {
	for _, tc := range []struct {
		a, m  byte
		carry bool
	}{
		{0x00, 0x00, false},
		{0x42, 0x0f, false},
		{0x42, 0x0f, true},
		{0x7f, 0x01, false},
		{0x80, 0x80, true},
		{0xff, 0xff, false},
	} {
		c, flat := boot(t, "")
		flat.Write(0x0000, tc.m)
		c.Accumulator = tc.a
		c.addrAbs = 0x0000

		c.opcode = 0x69 // ADC
		c.SetFlag(FlagC, tc.carry)
		c.ADC()

		c.opcode = 0xe9 // SBC
		c.SetFlag(FlagC, !tc.carry)
		c.SBC()

		assert.Equal(t, c.Accumulator, tc.a,
			"a=%02X m=%02X c=%v", tc.a, tc.m, tc.carry)
	}
}

func TestIrqMaskedByInterruptDisable(t *testing.T) {
	c, flat := boot(t, "EA")
	flat.SetVector(IrqVector, 0x9000)
	before := snapshot(c)

	c.SetFlag(FlagI, true)
	c.Irq()

	after := snapshot(c)
	after.P = before.P // only I differs, by construction
	assert.Equal(t, after, before)
	assert.True(t, c.Complete())
}

func TestIrq(t *testing.T) {
	c, flat := boot(t, "EA")
	flat.SetVector(IrqVector, 0x9000)

	c.Irq()

	cycles := 0
	for !c.Complete() {
		c.Clock()
		cycles++
	}
	assert.Equal(t, cycles, 7)
	assert.Equal(t, c.ProgramCounter, uint16(0x9000))
	assert.True(t, c.GetFlag(FlagI))

	// stacked: PC high, PC low, then status with B clear and U set
	assert.Equal(t, flat.Peek(0x01fd), byte(0x80))
	assert.Equal(t, flat.Peek(0x01fc), byte(0x00))
	pushed := flat.Peek(0x01fb)
	assert.Zero(t, pushed&byte(FlagB))
	assert.NotZero(t, pushed&byte(FlagU))
}

func TestNmiIsNotMaskable(t *testing.T) {
	c, flat := boot(t, "EA")
	flat.SetVector(NmiVector, 0xa000)

	c.SetFlag(FlagI, true)
	c.Nmi()

	cycles := 0
	for !c.Complete() {
		c.Clock()
		cycles++
	}
	assert.Equal(t, cycles, 8)
	assert.Equal(t, c.ProgramCounter, uint16(0xa000))
}

func TestBrkRtiRoundTrip(t *testing.T) {
	c, flat := boot(t, "00")
	flat.SetVector(IrqVector, 0x9000)
	flat.Write(0x9000, 0x40) // RTI

	c.Step()
	assert.Equal(t, c.ProgramCounter, uint16(0x9000))
	assert.True(t, c.GetFlag(FlagI))
	// the stacked status shows the break bit; the live register does not
	assert.NotZero(t, flat.Peek(0x01fb)&byte(FlagB))
	assert.False(t, c.GetFlag(FlagB))

	c.Step()
	// BRK skips its padding byte, so execution resumes at 0x8002
	assert.Equal(t, c.ProgramCounter, uint16(0x8002))
	assert.Equal(t, c.Stack, byte(0xfd))
	assert.False(t, c.GetFlag(FlagB))
	assert.True(t, c.GetFlag(FlagU))
}

func TestFlagAccessors(t *testing.T) {
	c, _ := boot(t, "")

	c.SetFlag(FlagC, true)
	assert.True(t, c.GetFlag(FlagC))
	c.SetFlag(FlagC, false)
	assert.False(t, c.GetFlag(FlagC))

	assert.Equal(t, FlagNamed('C'), FlagC)
	assert.Equal(t, FlagNamed('N'), FlagN)

	// anything that is not exactly one status bit is a coding mistake
	assert.Panics(t, func() { c.GetFlag(0) })
	assert.Panics(t, func() { c.SetFlag(FlagC|FlagZ, true) })
	assert.Panics(t, func() { FlagNamed('Q') })
}

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Log(msg string) {
	l.lines = append(l.lines, msg)
}

func TestTrace(t *testing.T) {
	capture := &captureLogger{}
	SetLogger(capture)
	SetTraceEnabled(true)
	defer func() {
		SetTraceEnabled(false)
		SetLogger(nil)
	}()

	c, _ := boot(t, "A9 42 AA")
	c.Step()
	c.Step()

	assert.Len(t, capture.lines, 2)
	assert.True(t, strings.HasPrefix(capture.lines[0], "8000  A9  LDA"), capture.lines[0])
	assert.Contains(t, capture.lines[0], "A:00")
	assert.Contains(t, capture.lines[0], "SP:FD")
	assert.Contains(t, capture.lines[1], fmt.Sprintf("P:%02X", c.Status))
}
