// Package operand resolves a decoded operand into a concrete value or
// effective address against the current register file, the runtime half
// of instruction execution as opposed to internal/decode's static half.
// The Memory case sums base + index*scale + displacement plus the FS/GS
// segment base; segment overrides are resolved here rather than inside
// the decoder.
package operand

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/internal/decode"
	"github.com/oisee/axvm/pkg/cpu"
)

// Kind mirrors decode.OperandKind; re-exported so callers outside
// internal/ don't need to import the decoder package directly.
type Kind = decode.OperandKind

const (
	KindNone      = decode.KindNone
	KindRegister  = decode.KindRegister
	KindMemory    = decode.KindMemory
	KindImmediate = decode.KindImmediate
)

// Resolved is a decoded operand with its runtime address or register
// already determined. For Kind == KindMemory, Addr is the absolute
// effective address; the caller still performs the actual memory access.
type Resolved struct {
	Kind  Kind
	Width int
	Reg   cpu.Register
	Addr  uint64
	Imm   int64
}

// Resolve computes the runtime value of a decoded operand. regs supplies
// the base/index register values and the FS/GS segment bases; it is not
// mutated.
func Resolve(op decode.Operand, regs *cpu.Registers) (Resolved, *axerr.Error) {
	switch op.Kind {
	case decode.KindRegister:
		return Resolved{Kind: KindRegister, Width: op.Width, Reg: op.Reg}, nil
	case decode.KindImmediate:
		return Resolved{Kind: KindImmediate, Width: op.Width, Imm: op.Imm}, nil
	case decode.KindMemory:
		return Resolved{Kind: KindMemory, Width: op.Width, Addr: Addr(op.Mem, regs)}, nil
	default:
		return Resolved{}, axerr.Errorf("operand: unresolvable operand kind %v", op.Kind)
	}
}

// Addr computes the effective address Segment:[Base+Scale*Index+Disp] of
// a memory operand. A zero Base/Index/Segment register (none decoded)
// contributes nothing. Only FS and GS overrides carry a base; CS/SS/DS/ES
// prefixes are ignored in the flat model.
func Addr(m decode.MemOperand, regs *cpu.Registers) uint64 {
	var addr uint64
	if m.Base != 0 {
		addr += regs.Read64(m.Base)
	}
	if m.Index != 0 {
		addr += regs.Read64(m.Index) * uint64(m.Scale)
	}
	addr += uint64(m.Disp)
	switch m.Segment {
	case cpu.FS:
		addr += regs.Read64(cpu.FS)
	case cpu.GS:
		addr += regs.Read64(cpu.GS)
	}
	return addr
}
