// Command gnes hosts the 6502 core outside any console: it loads a program
// into a flat 64 kB board, plants the reset vector, and either runs it,
// disassembles it, or drops into the interactive monitor.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	cli "gopkg.in/urfave/cli.v2"

	"gnes/cpu"
	"gnes/mem"
)

// the multiply demo: computes 10 * 3 by repeated addition, stores the
// result at 0x0002, then idles on NOPs
const demoProgram = "A2 0A 8E 00 00 A2 03 8E 01 00 AC 00 00 A9 00 18 6D 01 00 88 D0 FA 8D 02 00 EA EA EA"

type stderrLogger struct{}

func (stderrLogger) Log(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

func parseAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint16(v), nil
}

// buildMachine assembles a flat board with the program loaded at --addr and
// the reset vector pointing there, and a Cpu already past its reset
// sequence.
func buildMachine(ctx *cli.Context) (*cpu.Cpu, *mem.Flat, error) {
	program := ctx.String("program")
	if path, ok := strings.CutPrefix(program, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		program = string(data)
	}

	addr, err := parseAddr(ctx.String("addr"))
	if err != nil {
		return nil, nil, err
	}

	flat := mem.NewFlat()
	bus := mem.NewBus()
	if err := bus.Register(flat); err != nil {
		return nil, nil, err
	}
	if err := flat.LoadHex(addr, program); err != nil {
		return nil, nil, err
	}
	flat.SetVector(cpu.ResetVector, addr)

	c := cpu.New(bus)
	c.Reset()
	for !c.Complete() {
		c.Clock()
	}
	return c, flat, nil
}

func machineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "program",
			Value: demoProgram,
			Usage: "program as hex bytes, or @file containing them",
		},
		&cli.StringFlag{
			Name:  "addr",
			Value: "0x8000",
			Usage: "load address and reset target",
		},
	}
}

func main() {
	app := &cli.App{
		Name:  "gnes",
		Usage: "6502 core: run, disassemble, or monitor a program",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "execute a number of instructions and print the final state",
				Flags: append(machineFlags(),
					&cli.IntFlag{
						Name:  "steps",
						Value: 50,
						Usage: "instructions to execute",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "log every instruction to stderr",
					},
				),
				Action: func(ctx *cli.Context) error {
					c, flat, err := buildMachine(ctx)
					if err != nil {
						return err
					}
					if ctx.Bool("trace") {
						cpu.SetLogger(stderrLogger{})
						cpu.SetTraceEnabled(true)
						defer cpu.SetTraceEnabled(false)
					}
					for i := 0; i < ctx.Int("steps"); i++ {
						c.Step()
					}
					fmt.Printf("PC:%04X SP:%02X A:%02X X:%02X Y:%02X P:%02X CYC:%d\n",
						c.ProgramCounter, c.Stack, c.Accumulator, c.X, c.Y, c.Status, c.ClockCount())
					fmt.Print("zero page: ")
					for i := uint16(0); i < 16; i++ {
						fmt.Printf("%02X ", flat.Peek(i))
					}
					fmt.Println()
					return nil
				},
			},
			{
				Name:  "disasm",
				Usage: "print a disassembly window",
				Flags: append(machineFlags(),
					&cli.StringFlag{
						Name:  "start",
						Value: "0x8000",
						Usage: "first address",
					},
					&cli.StringFlag{
						Name:  "stop",
						Value: "0x8020",
						Usage: "last address",
					},
				),
				Action: func(ctx *cli.Context) error {
					c, _, err := buildMachine(ctx)
					if err != nil {
						return err
					}
					start, err := parseAddr(ctx.String("start"))
					if err != nil {
						return err
					}
					stop, err := parseAddr(ctx.String("stop"))
					if err != nil {
						return err
					}
					dis := c.Disassemble(start, stop)
					for _, addr := range dis.Index {
						fmt.Println(dis.Lines[addr])
					}
					return nil
				},
			},
			{
				Name:  "debug",
				Usage: "start the interactive monitor",
				Flags: machineFlags(),
				Action: func(ctx *cli.Context) error {
					c, _, err := buildMachine(ctx)
					if err != nil {
						return err
					}
					return c.Debug()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
