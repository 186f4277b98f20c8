package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/operand"
)

// execPUSH decrements RSP by the operand width (2 or 8 bytes) and writes
// the value at the new top of stack.
func execPUSH(m *Machine, src operand.Resolved) *axerr.Error {
	if src.Width == 16 {
		v, aerr := readOperandT[uint16](m, src)
		if aerr != nil {
			return aerr
		}
		rsp := m.Regs.Read64(cpu.RSP) - 2
		if aerr := m.Mem.Write16(rsp, v); aerr != nil {
			return aerr
		}
		m.setRSP(rsp, "push")
		return nil
	}
	v, aerr := readOperandT[uint64](m, src)
	if aerr != nil {
		return aerr
	}
	rsp := m.Regs.Read64(cpu.RSP) - 8
	if aerr := m.Mem.Write64(rsp, v); aerr != nil {
		return aerr
	}
	m.setRSP(rsp, "push")
	return nil
}

// execPOP reads the value at the top of stack into dst, then increments
// RSP by the operand width.
func execPOP(m *Machine, dst operand.Resolved) *axerr.Error {
	rsp := m.Regs.Read64(cpu.RSP)
	if dst.Width == 16 {
		v, aerr := m.Mem.Read16(rsp)
		if aerr != nil {
			return aerr
		}
		if aerr := writeOperandT(m, dst, v); aerr != nil {
			return aerr
		}
		m.setRSP(rsp+2, "pop")
		return nil
	}
	v, aerr := m.Mem.Read64(rsp)
	if aerr != nil {
		return aerr
	}
	if aerr := writeOperandT(m, dst, v); aerr != nil {
		return aerr
	}
	m.setRSP(rsp+8, "pop")
	return nil
}
