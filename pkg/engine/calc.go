package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/flags"
	"github.com/oisee/axvm/pkg/operand"
)

// Width is the set of integer widths instruction handlers compute over,
// an alias of flags.Width so callers only need one constraint name.
type Width = flags.Width

func readOperandT[T Width](m *Machine, r operand.Resolved) (T, *axerr.Error) {
	switch r.Kind {
	case operand.KindRegister:
		return readRegT[T](m, r.Reg), nil
	case operand.KindMemory:
		return readMemT[T](m, r.Addr)
	case operand.KindImmediate:
		return T(r.Imm), nil
	default:
		return 0, axerr.Errorf("engine: cannot read operand kind %v", r.Kind)
	}
}

func readRegT[T Width](m *Machine, reg cpu.Register) T {
	switch any(*new(T)).(type) {
	case uint8:
		return T(m.Regs.Read8(reg))
	case uint16:
		return T(m.Regs.Read16(reg))
	case uint32:
		return T(m.Regs.Read32(reg))
	default:
		return T(m.Regs.Read64(reg))
	}
}

func readMemT[T Width](m *Machine, addr uint64) (T, *axerr.Error) {
	switch any(*new(T)).(type) {
	case uint8:
		v, aerr := m.Mem.Read8(addr)
		return T(v), aerr
	case uint16:
		v, aerr := m.Mem.Read16(addr)
		return T(v), aerr
	case uint32:
		v, aerr := m.Mem.Read32(addr)
		return T(v), aerr
	default:
		v, aerr := m.Mem.Read64(addr)
		return T(v), aerr
	}
}

func writeOperandT[T Width](m *Machine, r operand.Resolved, v T) *axerr.Error {
	switch r.Kind {
	case operand.KindRegister:
		writeRegT(m, r.Reg, v)
		return nil
	case operand.KindMemory:
		return writeMemT(m, r.Addr, v)
	default:
		return axerr.Errorf("engine: cannot write operand kind %v", r.Kind)
	}
}

func writeRegT[T Width](m *Machine, reg cpu.Register, v T) {
	switch x := any(v).(type) {
	case uint8:
		m.Regs.Write8(reg, x)
	case uint16:
		m.Regs.Write16(reg, x)
	case uint32:
		m.Regs.Write32(reg, x)
	case uint64:
		m.Regs.Write64(reg, x)
	}
}

func writeMemT[T Width](m *Machine, addr uint64, v T) *axerr.Error {
	switch x := any(v).(type) {
	case uint8:
		return m.Mem.Write8(addr, x)
	case uint16:
		return m.Mem.Write16(addr, x)
	case uint32:
		return m.Mem.Write32(addr, x)
	case uint64:
		return m.Mem.Write64(addr, x)
	}
	return nil
}

// signBit reports whether v's most-significant bit, for its width T, is set.
func signBit[T Width](v T) bool {
	w := flags.Bits(v)
	return (v>>(w-1))&1 != 0
}

// calcRM implements the "rm <- f(rm)" handler template: read the r/m
// operand, compute, write back, set flags. Used by INC, DEC, NOT, NEG and
// the single-operand shift/rotate forms.
func calcRM[T Width](m *Machine, rm operand.Resolved, setMask, clearMask flags.Flags, f func(T) (T, bool, bool, bool)) *axerr.Error {
	d, aerr := readOperandT[T](m, rm)
	if aerr != nil {
		return aerr
	}
	result, cf, of, af := f(d)
	if aerr := writeOperandT(m, rm, result); aerr != nil {
		return aerr
	}
	m.RFlags = flags.SetResult(m.RFlags, setMask, clearMask, result, cf, of, af)
	return nil
}

// calcBinary implements the "rm <- f(rm, r)", "r <- f(r, rm)" and
// "rm <- f(rm, imm)" templates: read dst and src, compute, optionally write dst back,
// set flags. writeback=false gives CMP/TEST (SUB/AND without writeback).
func calcBinary[T Width](m *Machine, dst, src operand.Resolved, setMask, clearMask flags.Flags, writeback bool, f func(d, s T) (T, bool, bool, bool)) *axerr.Error {
	d, aerr := readOperandT[T](m, dst)
	if aerr != nil {
		return aerr
	}
	s, aerr := readOperandT[T](m, src)
	if aerr != nil {
		return aerr
	}
	result, cf, of, af := f(d, s)
	if writeback {
		if aerr := writeOperandT(m, dst, result); aerr != nil {
			return aerr
		}
	}
	m.RFlags = flags.SetResult(m.RFlags, setMask, clearMask, result, cf, of, af)
	return nil
}

// loadRM implements the "r <- f(rm)" template: read src at width Ts, apply
// convert (identity, zero-extension, or sign-extension), write dst at
// width Td. No flags. Used by MOV, MOVZX, MOVSX, MOVSXD.
func loadRM[Ts, Td Width](m *Machine, dst, src operand.Resolved, convert func(Ts) Td) *axerr.Error {
	s, aerr := readOperandT[Ts](m, src)
	if aerr != nil {
		return aerr
	}
	return writeOperandT(m, dst, convert(s))
}

// binaryFn and unaryFn name the shape calcBinary/calcRM expect, so the
// per-width dispatch helpers below can be written once instead of per family.
type binaryFn[T Width] func(d, s T) (T, bool, bool, bool)
type unaryFn[T Width] func(d T) (T, bool, bool, bool)

// dispatchBinary picks the width-appropriate instantiation of a calcBinary
// operation. Every ADD/SUB/CMP/AND/OR/XOR/TEST handler is one call to this
// with its four width instantiations; ADC/SBB close over the incoming
// carry and call calcBinary themselves.
func dispatchBinary(m *Machine, dst, src operand.Resolved, setMask, clearMask flags.Flags, writeback bool, width int,
	f8 binaryFn[uint8], f16 binaryFn[uint16], f32 binaryFn[uint32], f64 binaryFn[uint64]) *axerr.Error {
	switch width {
	case 8:
		return calcBinary(m, dst, src, setMask, clearMask, writeback, f8)
	case 16:
		return calcBinary(m, dst, src, setMask, clearMask, writeback, f16)
	case 32:
		return calcBinary(m, dst, src, setMask, clearMask, writeback, f32)
	default:
		return calcBinary(m, dst, src, setMask, clearMask, writeback, f64)
	}
}

// dispatchUnary is dispatchBinary's counterpart for calcRM: INC, DEC, NOT
// and NEG. The shift/rotate handlers pick their calcRM instantiation
// themselves, since each op closes over the masked count.
func dispatchUnary(m *Machine, rm operand.Resolved, setMask, clearMask flags.Flags, width int,
	f8 unaryFn[uint8], f16 unaryFn[uint16], f32 unaryFn[uint32], f64 unaryFn[uint64]) *axerr.Error {
	switch width {
	case 8:
		return calcRM(m, rm, setMask, clearMask, f8)
	case 16:
		return calcRM(m, rm, setMask, clearMask, f16)
	case 32:
		return calcRM(m, rm, setMask, clearMask, f32)
	default:
		return calcRM(m, rm, setMask, clearMask, f64)
	}
}

// arithFlags is the set/clear mask shared by ADD/SUB/ADC/SBB/CMP: every
// status flag is recomputed, nothing is left unaffected by this template.
const arithFlags = flags.CF | flags.OF | flags.AF | flags.SF | flags.ZF | flags.PF

// incDecFlags excludes CF: INC/DEC leave it untouched.
const incDecFlags = flags.OF | flags.AF | flags.SF | flags.ZF | flags.PF

// logicFlags is AND/OR/XOR/TEST's mask: CF/OF are explicitly cleared,
// PF/ZF/SF set from the result, AF left unchanged (hardware leaves it
// undefined).
const logicFlags = flags.CF | flags.OF | flags.SF | flags.ZF | flags.PF

func addOp[T Width](d, s T) (T, bool, bool, bool) {
	result := d + s
	cf := result < d
	of := signBit((d ^ result) & (s ^ result))
	af := (d&0xF)+(s&0xF) >= 0x10
	return result, cf, of, af
}

func subOp[T Width](d, s T) (T, bool, bool, bool) {
	result := d - s
	cf := d < s
	of := signBit((d ^ s) & (d ^ result))
	af := d&0xF < s&0xF
	return result, cf, of, af
}

func adcOp[T Width](carryIn bool) func(d, s T) (T, bool, bool, bool) {
	var c T
	if carryIn {
		c = 1
	}
	return func(d, s T) (T, bool, bool, bool) {
		s2 := s + c
		carryFromCin := s2 < s
		result := d + s2
		cf := result < d || carryFromCin
		of := signBit((d ^ result) & (s2 ^ result))
		af := (d&0xF)+(s&0xF)+c >= 0x10
		return result, cf, of, af
	}
}

func sbbOp[T Width](carryIn bool) func(d, s T) (T, bool, bool, bool) {
	var c T
	if carryIn {
		c = 1
	}
	return func(d, s T) (T, bool, bool, bool) {
		s2 := s + c
		borrowFromCin := s2 < s
		result := d - s2
		cf := d < s2 || borrowFromCin
		of := signBit((d ^ s2) & (d ^ result))
		af := d&0xF < (s&0xF)+c
		return result, cf, of, af
	}
}

func andOp[T Width](d, s T) (T, bool, bool, bool) { return d & s, false, false, false }
func orOp[T Width](d, s T) (T, bool, bool, bool)  { return d | s, false, false, false }
func xorOp[T Width](d, s T) (T, bool, bool, bool) { return d ^ s, false, false, false }

func negOp[T Width](d T) (T, bool, bool, bool) {
	result := T(0) - d
	cf := d != 0
	of := d == T(1)<<(flags.Bits(d)-1)
	af := T(0)&0xF < d&0xF
	return result, cf, of, af
}

func notOp[T Width](d T) (T, bool, bool, bool) { return ^d, false, false, false }

func incOp[T Width](d T) (T, bool, bool, bool) {
	result := d + 1
	of := d == T(1)<<(flags.Bits(d)-1)-1
	af := d&0xF == 0xF
	return result, false, of, af
}

func decOp[T Width](d T) (T, bool, bool, bool) {
	result := d - 1
	of := d == T(1)<<(flags.Bits(d)-1)
	af := d&0xF == 0
	return result, false, of, af
}
