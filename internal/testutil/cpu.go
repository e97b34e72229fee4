package testutil

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Toy machine dimensions.
const (
	Registers = 8
	MemWords  = 16
)

// ErrNoHalt is returned by Machine.Run when the cycle budget runs out.
var ErrNoHalt = errors.New("program did not halt")

// Instr is one decoded toy instruction.
type Instr struct {
	Op   string
	Args []int
}

var arity = map[string]int{
	"li":   2, // li rd, imm
	"add":  3, // add rd, ra, rb
	"sub":  3, // sub rd, ra, rb
	"st":   2, // st rs, addr
	"j":    1, // j target
	"halt": 0,
}

// Assemble parses toy assembly. Comments start with '#' or ';'.
// Register operands are written r0..r7.
func Assemble(src string) ([]Instr, error) {
	var prog []Instr
	for n, line := range strings.Split(src, "\n") {
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
		if len(fields) == 0 {
			continue
		}

		op := strings.ToLower(fields[0])
		want, ok := arity[op]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown instruction %q", n+1, fields[0])
		}
		if len(fields)-1 != want {
			return nil, fmt.Errorf("line %d: %s takes %d operands, got %d", n+1, op, want, len(fields)-1)
		}

		in := Instr{Op: op}
		for _, f := range fields[1:] {
			v, err := operand(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			in.Args = append(in.Args, v)
		}
		prog = append(prog, in)
	}
	return prog, nil
}

func operand(s string) (int, error) {
	s = strings.ToLower(s)
	if strings.HasPrefix(s, "r") {
		r, err := strconv.Atoi(s[1:])
		if err != nil || r < 0 || r >= Registers {
			return 0, fmt.Errorf("bad register %q", s)
		}
		return r, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad operand %q", s)
	}
	return v, nil
}

// EncodeImage renders a program as the binstr-style image the fakes exchange:
// one instruction per line, opcode then decimal operands.
func EncodeImage(prog []Instr) string {
	var b strings.Builder
	b.WriteString("// toy image\n")
	for _, in := range prog {
		b.WriteString(in.Op)
		for _, a := range in.Args {
			fmt.Fprintf(&b, " %d", a)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DecodeImage is the inverse of EncodeImage.
func DecodeImage(text string) ([]Instr, error) {
	var prog []Instr
	for n, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		in := Instr{Op: fields[0]}
		if _, ok := arity[in.Op]; !ok {
			return nil, fmt.Errorf("image line %d: unknown opcode %q", n+1, in.Op)
		}
		for _, f := range fields[1:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("image line %d: %w", n+1, err)
			}
			in.Args = append(in.Args, v)
		}
		prog = append(prog, in)
	}
	return prog, nil
}

// Machine is the final or intermediate state of a toy program run.
type Machine struct {
	Regs   [Registers]int
	Mem    [MemWords]int
	Cycles int
}

// Run executes prog for at most maxCycles instructions.
func (m *Machine) Run(prog []Instr, maxCycles int) error {
	pc := 0
	for m.Cycles < maxCycles {
		if pc < 0 || pc >= len(prog) {
			return fmt.Errorf("pc %d out of range", pc)
		}
		in := prog[pc]
		m.Cycles++
		pc++

		switch in.Op {
		case "li":
			m.Regs[in.Args[0]] = in.Args[1]
		case "add":
			m.Regs[in.Args[0]] = m.Regs[in.Args[1]] + m.Regs[in.Args[2]]
		case "sub":
			m.Regs[in.Args[0]] = m.Regs[in.Args[1]] - m.Regs[in.Args[2]]
		case "st":
			addr := in.Args[1]
			if addr < 0 || addr >= MemWords {
				return fmt.Errorf("store address %d out of range", addr)
			}
			m.Mem[addr] = m.Regs[in.Args[0]]
		case "j":
			pc = in.Args[0]
		case "halt":
			return nil
		}
	}
	return ErrNoHalt
}

// WriteDumps writes the memory and register dumps as 16-bit binary strings,
// each followed by a comment starting with tag. Executors that agree on state
// but use different tags produce dumps equal under comment-insensitive
// comparison.
func (m *Machine) WriteDumps(memPath, regPath, tag string) error {
	var mem, regs strings.Builder
	for i, v := range m.Mem {
		fmt.Fprintf(&mem, "%016b %s mem[%d]\n", uint16(v), tag, i)
	}
	for i, v := range m.Regs {
		fmt.Fprintf(&regs, "%016b %s r%d\n", uint16(v), tag, i)
	}
	if err := os.WriteFile(memPath, []byte(mem.String()), 0o644); err != nil {
		return err
	}
	return os.WriteFile(regPath, []byte(regs.String()), 0o644)
}
