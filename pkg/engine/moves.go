package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/operand"
)

// execMOV copies src into dst at a single shared width. No flags.
func execMOV(m *Machine, dst, src operand.Resolved) *axerr.Error {
	switch dst.Width {
	case 8:
		return loadRM(m, dst, src, func(v uint8) uint8 { return v })
	case 16:
		return loadRM(m, dst, src, func(v uint16) uint16 { return v })
	case 32:
		return loadRM(m, dst, src, func(v uint32) uint32 { return v })
	default:
		return loadRM(m, dst, src, func(v uint64) uint64 { return v })
	}
}

// execMOVZX zero-extends a narrower src into a wider dst register.
func execMOVZX(m *Machine, dst, src operand.Resolved) *axerr.Error {
	switch {
	case src.Width == 8 && dst.Width == 16:
		return loadRM(m, dst, src, func(v uint8) uint16 { return uint16(v) })
	case src.Width == 8 && dst.Width == 32:
		return loadRM(m, dst, src, func(v uint8) uint32 { return uint32(v) })
	case src.Width == 8 && dst.Width == 64:
		return loadRM(m, dst, src, func(v uint8) uint64 { return uint64(v) })
	case src.Width == 16 && dst.Width == 32:
		return loadRM(m, dst, src, func(v uint16) uint32 { return uint32(v) })
	case src.Width == 16 && dst.Width == 64:
		return loadRM(m, dst, src, func(v uint16) uint64 { return uint64(v) })
	default:
		return axerr.Errorf("engine: unsupported movzx widths %d -> %d", src.Width, dst.Width)
	}
}

// execMOVSX sign-extends a narrower src into a wider dst register.
func execMOVSX(m *Machine, dst, src operand.Resolved) *axerr.Error {
	switch {
	case src.Width == 8 && dst.Width == 16:
		return loadRM(m, dst, src, func(v uint8) uint16 { return uint16(int16(int8(v))) })
	case src.Width == 8 && dst.Width == 32:
		return loadRM(m, dst, src, func(v uint8) uint32 { return uint32(int32(int8(v))) })
	case src.Width == 8 && dst.Width == 64:
		return loadRM(m, dst, src, func(v uint8) uint64 { return uint64(int64(int8(v))) })
	case src.Width == 16 && dst.Width == 32:
		return loadRM(m, dst, src, func(v uint16) uint32 { return uint32(int32(int16(v))) })
	case src.Width == 16 && dst.Width == 64:
		return loadRM(m, dst, src, func(v uint16) uint64 { return uint64(int64(int16(v))) })
	default:
		return axerr.Errorf("engine: unsupported movsx widths %d -> %d", src.Width, dst.Width)
	}
}

// execMOVSXD sign-extends a 32-bit src into a 64-bit dst (the only width
// pair MOVSXD is ever encoded with).
func execMOVSXD(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return loadRM(m, dst, src, func(v uint32) uint64 { return uint64(int64(int32(v))) })
}

// execLEA writes the already-resolved effective address of a memory
// operand into dst, without touching memory at all.
func execLEA(m *Machine, dst, src operand.Resolved) *axerr.Error {
	if src.Kind != operand.KindMemory {
		return axerr.New("engine: lea source is not a memory operand")
	}
	if dst.Width == 32 {
		writeRegT(m, dst.Reg, uint32(src.Addr))
		return nil
	}
	writeRegT(m, dst.Reg, src.Addr)
	return nil
}

// execMOVD transfers the low 32 bits between an XMM register and a
// general-purpose/memory location. Writing into an XMM register zeroes
// bits 127..32 (Intel SDM Vol 2, MOVD/MOVQ).
func execMOVD(m *Machine, dst, src operand.Resolved) *axerr.Error {
	if src.Kind == operand.KindRegister && src.Width == 128 {
		v := uint32(m.Regs.Read128(src.Reg).Lo)
		return writeOperandT(m, dst, v)
	}
	v, aerr := readOperandT[uint32](m, src)
	if aerr != nil {
		return aerr
	}
	m.Regs.Write128(dst.Reg, cpu.U128{Lo: uint64(v)})
	return nil
}

// execMOVUPS moves 128 bits between XMM registers or XMM and memory, with
// no alignment requirement.
func execMOVUPS(m *Machine, dst, src operand.Resolved) *axerr.Error {
	switch {
	case dst.Kind == operand.KindRegister && src.Kind == operand.KindRegister:
		m.Regs.Write128(dst.Reg, m.Regs.Read128(src.Reg))
		return nil
	case dst.Kind == operand.KindRegister:
		lo, hi, aerr := m.Mem.Read128(src.Addr)
		if aerr != nil {
			return aerr
		}
		m.Regs.Write128(dst.Reg, cpu.U128{Lo: lo, Hi: hi})
		return nil
	default:
		v := m.Regs.Read128(src.Reg)
		return m.Mem.Write128(dst.Addr, v.Lo, v.Hi)
	}
}
