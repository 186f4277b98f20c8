// Package engine is the emulator's aggregate root: it glues the register
// file, virtual memory, RFLAGS, and the instruction decoder into a single
// stepping execution loop, and dispatches each decoded instruction to its
// mnemonic handler.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/internal/decode"
	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/flags"
	"github.com/oisee/axvm/pkg/memory"
)

// lastRSP records the most recent RSP write made through setRSP (the
// CALL/RET/PUSH/POP handlers), for error detail rendering on a fault.
// Other writes to RSP, such as MOV or ADD with RSP as destination, are
// not recorded.
type lastRSP struct {
	value    uint64
	mnemonic string
	rip      uint64
}

// Machine is one emulator instance: the full architectural state plus the
// bookkeeping the execution loop and error reporting need.
type Machine struct {
	Regs     cpu.Registers
	Mem      *memory.Space
	RFlags   flags.Flags
	StackTop uint64

	Budget   int
	executed int
	finished bool

	lastRSP   lastRSP
	callStack []uint64
}

// Config controls the layout NewMachine builds before execution starts.
type Config struct {
	Code        []byte
	CodeAddr    uint64
	RIP         uint64 // defaults to CodeAddr if zero
	StackTop    uint64
	StackSize   uint64
	Budget      int  // 0 means unlimited
	RandomizeGP bool // fill non-RIP/RSP GPRs with random bits at construction
}

// NewMachine builds a Machine with a code region at CodeAddr (Read|Exec)
// and a stack region of StackSize bytes immediately below StackTop
// (Read|Write). A fresh instance owns its memory regions for its whole
// lifetime.
func NewMachine(cfg Config) (*Machine, *axerr.Error) {
	m := &Machine{
		Mem:      memory.NewSpace(),
		StackTop: cfg.StackTop,
		Budget:   cfg.Budget,
	}

	if _, aerr := m.Mem.InitArea(cfg.CodeAddr, cfg.Code, memory.Read|memory.Exec, "code"); aerr != nil {
		return nil, aerr
	}
	if cfg.StackSize > 0 {
		if _, aerr := m.Mem.InitZero(cfg.StackTop-cfg.StackSize, cfg.StackSize, memory.Read|memory.Write, "stack"); aerr != nil {
			return nil, aerr
		}
	}

	rip := cfg.RIP
	if rip == 0 {
		rip = cfg.CodeAddr
	}
	m.Regs = cpu.NewRegisters(rip)
	m.Regs.Write64(cpu.RSP, cfg.StackTop)

	if cfg.RandomizeGP {
		randomizeGPRs(&m.Regs)
	}

	return m, nil
}

// randomizeGPRs seeds every general-purpose register except RSP with
// random bits. Programs must not depend on uninitialized-register
// contents, and randomized starts surface that kind of bug.
func randomizeGPRs(r *cpu.Registers) {
	for _, reg := range []cpu.Register{
		cpu.RAX, cpu.RCX, cpu.RDX, cpu.RBX, cpu.RBP, cpu.RSI, cpu.RDI,
		cpu.R8, cpu.R9, cpu.R10, cpu.R11, cpu.R12, cpu.R13, cpu.R14, cpu.R15,
	} {
		r.Write64(reg, rand.Uint64())
	}
}

// setRSP writes RSP and records the write for error detail rendering on
// a fault.
func (m *Machine) setRSP(v uint64, mnemonic string) {
	m.Regs.Write64(cpu.RSP, v)
	m.lastRSP = lastRSP{value: v, mnemonic: mnemonic, rip: m.Regs.RIP()}
}

// Finished reports whether the machine has reached a normal-finish state.
func (m *Machine) Finished() bool { return m.finished }

// Executed returns the number of instructions decoded and dispatched,
// including one whose handler returned a fault.
func (m *Machine) Executed() int { return m.executed }

// Step performs exactly one fetch-decode-dispatch iteration. It is a
// no-op once the machine has finished.
func (m *Machine) Step() *axerr.Error {
	if m.finished {
		return nil
	}
	if m.Budget > 0 && m.executed >= m.Budget {
		return axerr.Errorf("engine: instruction budget of %d exhausted at rip %#x", m.Budget, m.Regs.RIP())
	}

	rip := m.Regs.RIP()
	code, aerr := m.Mem.FetchCode(rip, 15)
	if aerr != nil {
		return aerr
	}
	in, aerr := decode.Decode(code, rip)
	if aerr != nil {
		return aerr
	}

	m.Regs.SetRIP(rip + uint64(in.Length))
	m.executed++

	if aerr := dispatch(m, in); aerr != nil {
		if aerr.NormalFinish() {
			m.finished = true
			return nil
		}
		detail := fmt.Sprintf("while executing %s at %#x", in.Mnemonic, rip)
		return aerr.WithDetail(detail, renderCallStack(m.callStack), "", m.stackDump())
	}
	return nil
}

// stackDump summarizes the stack-pointer state for error detail: the
// current RSP plus the last recorded write to it.
func (m *Machine) stackDump() string {
	s := fmt.Sprintf("rsp: %#x", m.Regs.Read64(cpu.RSP))
	if m.lastRSP.mnemonic != "" {
		s += fmt.Sprintf("\nlast rsp write: %#x by %s at %#x", m.lastRSP.value, m.lastRSP.mnemonic, m.lastRSP.rip)
	}
	return s
}

// Run steps the machine until it finishes, faults, or the budget is
// exhausted. ctx is checked between instructions only; cancellation
// never interrupts a partially-applied instruction.
func (m *Machine) Run(ctx context.Context) *axerr.Error {
	for !m.finished {
		select {
		case <-ctx.Done():
			return axerr.Errorf("engine: run cancelled: %v", ctx.Err())
		default:
		}
		if aerr := m.Step(); aerr != nil {
			return aerr
		}
	}
	return nil
}

func renderCallStack(stack []uint64) string {
	if len(stack) == 0 {
		return ""
	}
	frames := make([]string, len(stack))
	for i, addr := range stack {
		frames[len(stack)-1-i] = fmt.Sprintf("%#x", addr)
	}
	return strings.Join(frames, "\n")
}
