package mem

import (
	"fmt"
	"strconv"
	"strings"
)

// Standard NES main-bus layout.
const (
	RamMinAddr  uint16 = 0x0000
	RamMaxAddr  uint16 = 0x1fff
	PpuMinAddr  uint16 = 0x2000
	PpuMaxAddr  uint16 = 0x3fff
	ApuMinAddr  uint16 = 0x4000
	ApuMaxAddr  uint16 = 0x401f
	CartMinAddr uint16 = 0x4020
	CartMaxAddr uint16 = 0xffff
)

// Ram is the console's 2 kB of work RAM, mirrored four times across
// 0x0000-0x1fff. The mirroring means writes through one alias are visible
// through the others, exactly as on the NES.
type Ram struct {
	data [2048]byte
}

func NewRam() *Ram { return &Ram{} }

func (r *Ram) Name() string                 { return "Ram" }
func (r *Ram) Range() (uint16, uint16)      { return RamMinAddr, RamMaxAddr }
func (r *Ram) Read(addr uint16) byte        { return r.data[addr&0x07ff] }
func (r *Ram) Write(addr uint16, data byte) { r.data[addr&0x07ff] = data }
func (r *Ram) Peek(addr uint16) byte        { return r.data[addr&0x07ff] }

// Rom maps a program image into the cartridge range. Writes are dropped:
// the bus contract says stores to read-only space are no-ops, not errors.
// An image smaller than the range is mirrored through it, the way a 16 kB
// PRG bank appears twice in a 32 kB window.
type Rom struct {
	lo, hi uint16
	image  []byte
}

// NewRom maps image at [lo, hi]. An empty image reads as zero.
func NewRom(lo uint16, hi uint16, image []byte) *Rom {
	return &Rom{lo: lo, hi: hi, image: image}
}

func (r *Rom) Name() string            { return "Rom" }
func (r *Rom) Range() (uint16, uint16) { return r.lo, r.hi }

func (r *Rom) Read(addr uint16) byte {
	if len(r.image) == 0 {
		return 0x00
	}
	return r.image[int(addr-r.lo)%len(r.image)]
}

func (r *Rom) Write(addr uint16, data byte) {}

func (r *Rom) Peek(addr uint16) byte { return r.Read(addr) }

// A Port is a window of hardware registers owned by a component outside
// this module (the PPU at 0x2000-0x3fff, the APU/IO block at 0x4000-0x401f).
// The owning component attaches through the OnRead/OnWrite hooks; the core
// only ever talks to the Port through the bus.
//
// Peek returns the last byte seen on the port without invoking OnRead,
// because register reads on real hardware can have side effects (the PPU
// status read clears its own latch) and the disassembler must not trigger
// them.
type Port struct {
	name   string
	lo, hi uint16

	OnRead  func(addr uint16) byte
	OnWrite func(addr uint16, data byte)

	latch byte
}

func NewPort(name string, lo uint16, hi uint16) *Port {
	return &Port{name: name, lo: lo, hi: hi}
}

func (p *Port) Name() string            { return p.name }
func (p *Port) Range() (uint16, uint16) { return p.lo, p.hi }

func (p *Port) Read(addr uint16) byte {
	if p.OnRead != nil {
		p.latch = p.OnRead(addr)
	}
	return p.latch
}

func (p *Port) Write(addr uint16, data byte) {
	p.latch = data
	if p.OnWrite != nil {
		p.OnWrite(addr, data)
	}
}

func (p *Port) Peek(addr uint16) byte { return p.latch }

// Flat is a single 64 kB array claiming the whole address space. No
// mirroring, no holes. It stands in for a fully decoded board in tests and
// in the monitor, where poking any address should just work.
type Flat struct {
	data [64 * 1024]byte
}

func NewFlat() *Flat { return &Flat{} }

func (f *Flat) Name() string                 { return "Flat" }
func (f *Flat) Range() (uint16, uint16)      { return 0x0000, 0xffff }
func (f *Flat) Read(addr uint16) byte        { return f.data[addr] }
func (f *Flat) Write(addr uint16, data byte) { f.data[addr] = data }
func (f *Flat) Peek(addr uint16) byte        { return f.data[addr] }

// Load copies a program into memory starting at addr.
func (f *Flat) Load(addr uint16, program []byte) {
	for i, b := range program {
		f.data[addr+uint16(i)] = b
	}
}

// LoadHex parses a program written as whitespace-separated hex bytes
// ("A9 42 ...") and loads it at addr. This is the format assemblers and
// opcode tables are usually quoted in.
func (f *Flat) LoadHex(addr uint16, program string) error {
	for i, field := range strings.Fields(program) {
		b, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			return fmt.Errorf("mem: bad hex byte %q at index %d: %w", field, i, err)
		}
		f.data[addr+uint16(i)] = byte(b)
	}
	return nil
}

// SetVector writes a little-endian pointer at addr, for planting the
// reset/IRQ/NMI vectors before a test run.
func (f *Flat) SetVector(addr uint16, target uint16) {
	f.data[addr] = byte(target)
	f.data[addr+1] = byte(target >> 8)
}
