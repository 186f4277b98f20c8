package engine

import (
	"math/big"
	"math/bits"

	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/flags"
	"github.com/oisee/axvm/pkg/operand"
)

// mulFlags mirrors shiftFlags' rationale: MUL/IMUL architecturally define
// only CF and OF (equal to each other), but this emulator recomputes
// SF/ZF/PF alongside them to avoid stale bits from flags.SetResult's
// unconditional ZF/SF recomputation.
const mulFlags = flags.CF | flags.OF | flags.SF | flags.ZF | flags.PF

// execMUL is the single-operand unsigned multiply: AL/AX/EAX/RAX times rm,
// widened result split across the implicit register pair.
func execMUL(m *Machine, rm operand.Resolved) *axerr.Error {
	switch rm.Width {
	case 8:
		src, aerr := readOperandT[uint8](m, rm)
		if aerr != nil {
			return aerr
		}
		result := uint16(m.Regs.Read8(cpu.AL)) * uint16(src)
		m.Regs.Write16(cpu.AX, result)
		cf := result>>8 != 0
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, uint8(result), cf, cf, false)
	case 16:
		src, aerr := readOperandT[uint16](m, rm)
		if aerr != nil {
			return aerr
		}
		result := uint32(m.Regs.Read16(cpu.AX)) * uint32(src)
		m.Regs.Write16(cpu.AX, uint16(result))
		m.Regs.Write16(cpu.DX, uint16(result>>16))
		cf := result>>16 != 0
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, uint16(result), cf, cf, false)
	case 32:
		src, aerr := readOperandT[uint32](m, rm)
		if aerr != nil {
			return aerr
		}
		result := uint64(m.Regs.Read32(cpu.EAX)) * uint64(src)
		m.Regs.Write32(cpu.EAX, uint32(result))
		m.Regs.Write32(cpu.EDX, uint32(result>>32))
		cf := result>>32 != 0
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, uint32(result), cf, cf, false)
	default:
		src, aerr := readOperandT[uint64](m, rm)
		if aerr != nil {
			return aerr
		}
		hi, lo := bits.Mul64(m.Regs.Read64(cpu.RAX), src)
		m.Regs.Write64(cpu.RAX, lo)
		m.Regs.Write64(cpu.RDX, hi)
		cf := hi != 0
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, lo, cf, cf, false)
	}
	return nil
}

// execIMUL is the single-operand signed multiply. CF/OF are set when the
// sign-extension of the low half does not reproduce the high half.
func execIMUL(m *Machine, rm operand.Resolved) *axerr.Error {
	switch rm.Width {
	case 8:
		src, aerr := readOperandT[uint8](m, rm)
		if aerr != nil {
			return aerr
		}
		result := int16(int8(m.Regs.Read8(cpu.AL))) * int16(int8(src))
		m.Regs.Write16(cpu.AX, uint16(result))
		cf := result != int16(int8(result))
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, uint16(result), cf, cf, false)
	case 16:
		src, aerr := readOperandT[uint16](m, rm)
		if aerr != nil {
			return aerr
		}
		result := int32(int16(m.Regs.Read16(cpu.AX))) * int32(int16(src))
		m.Regs.Write16(cpu.AX, uint16(result))
		m.Regs.Write16(cpu.DX, uint16(result>>16))
		cf := result != int32(int16(result))
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, uint32(result), cf, cf, false)
	case 32:
		src, aerr := readOperandT[uint32](m, rm)
		if aerr != nil {
			return aerr
		}
		result := int64(int32(m.Regs.Read32(cpu.EAX))) * int64(int32(src))
		m.Regs.Write32(cpu.EAX, uint32(result))
		m.Regs.Write32(cpu.EDX, uint32(result>>32))
		cf := result != int64(int32(result))
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, uint64(result), cf, cf, false)
	default:
		src, aerr := readOperandT[uint64](m, rm)
		if aerr != nil {
			return aerr
		}
		a := int64(m.Regs.Read64(cpu.RAX))
		b := int64(src)
		hi, lo := mulS64(a, b)
		m.Regs.Write64(cpu.RAX, lo)
		m.Regs.Write64(cpu.RDX, uint64(hi))
		sext := int64(0)
		if int64(lo) < 0 {
			sext = -1
		}
		cf := hi != sext
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, lo, cf, cf, false)
	}
	return nil
}

// execIMUL2 is the two-operand signed multiply: dst <- dst * src,
// width-truncated, with CF/OF set when the truncated result differs from
// the full mathematical product.
func execIMUL2(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return imulTruncated(m, dst, dst, src)
}

// execIMUL3 is the three-operand signed multiply: dst <- src * imm,
// width-truncated the same way as the two-operand form.
func execIMUL3(m *Machine, dst, src, imm operand.Resolved) *axerr.Error {
	return imulTruncated(m, dst, src, imm)
}

func imulTruncated(m *Machine, dst, a, b operand.Resolved) *axerr.Error {
	switch dst.Width {
	case 16:
		av, aerr := readOperandT[uint16](m, a)
		if aerr != nil {
			return aerr
		}
		bv, aerr := readOperandT[uint16](m, b)
		if aerr != nil {
			return aerr
		}
		full := int32(int16(av)) * int32(int16(bv))
		result := uint16(full)
		cf := full != int32(int16(result))
		if aerr := writeOperandT(m, dst, result); aerr != nil {
			return aerr
		}
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, result, cf, cf, false)
	case 32:
		av, aerr := readOperandT[uint32](m, a)
		if aerr != nil {
			return aerr
		}
		bv, aerr := readOperandT[uint32](m, b)
		if aerr != nil {
			return aerr
		}
		full := int64(int32(av)) * int64(int32(bv))
		result := uint32(full)
		cf := full != int64(int32(result))
		if aerr := writeOperandT(m, dst, result); aerr != nil {
			return aerr
		}
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, result, cf, cf, false)
	default:
		av, aerr := readOperandT[uint64](m, a)
		if aerr != nil {
			return aerr
		}
		bv, aerr := readOperandT[uint64](m, b)
		if aerr != nil {
			return aerr
		}
		hi, lo := mulS64(int64(av), int64(bv))
		sext := int64(0)
		if int64(lo) < 0 {
			sext = -1
		}
		cf := hi != sext
		if aerr := writeOperandT(m, dst, lo); aerr != nil {
			return aerr
		}
		m.RFlags = flags.SetResult(m.RFlags, mulFlags, 0, lo, cf, cf, false)
	}
	return nil
}

// mulS64 computes the signed 128-bit product of a and b via the standard
// unsigned-multiply-then-correct trick (Warren, Hacker's Delight §8-3),
// since math/bits has no signed 64x64->128 primitive.
func mulS64(a, b int64) (hi int64, lo uint64) {
	hiU, loU := bits.Mul64(uint64(a), uint64(b))
	hi = int64(hiU)
	if a < 0 {
		hi -= b
	}
	if b < 0 {
		hi -= a
	}
	return hi, loU
}

// execDIV is the single-operand unsigned divide. Division by zero, and a
// quotient that overflows its destination width, are both fatal.
func execDIV(m *Machine, rm operand.Resolved) *axerr.Error {
	switch rm.Width {
	case 8:
		divisor, aerr := readOperandT[uint8](m, rm)
		if aerr != nil {
			return aerr
		}
		if divisor == 0 {
			return axerr.New("engine: divide by zero")
		}
		dividend := m.Regs.Read16(cpu.AX)
		q, r := dividend/uint16(divisor), dividend%uint16(divisor)
		if q > 0xFF {
			return axerr.New("engine: divide overflow")
		}
		m.Regs.Write8(cpu.AL, uint8(q))
		m.Regs.Write8(cpu.AH, uint8(r))
	case 16:
		divisor, aerr := readOperandT[uint16](m, rm)
		if aerr != nil {
			return aerr
		}
		if divisor == 0 {
			return axerr.New("engine: divide by zero")
		}
		dividend := uint32(m.Regs.Read16(cpu.DX))<<16 | uint32(m.Regs.Read16(cpu.AX))
		q, r := dividend/uint32(divisor), dividend%uint32(divisor)
		if q > 0xFFFF {
			return axerr.New("engine: divide overflow")
		}
		m.Regs.Write16(cpu.AX, uint16(q))
		m.Regs.Write16(cpu.DX, uint16(r))
	case 32:
		divisor, aerr := readOperandT[uint32](m, rm)
		if aerr != nil {
			return aerr
		}
		if divisor == 0 {
			return axerr.New("engine: divide by zero")
		}
		dividend := uint64(m.Regs.Read32(cpu.EDX))<<32 | uint64(m.Regs.Read32(cpu.EAX))
		q, r := dividend/uint64(divisor), dividend%uint64(divisor)
		if q > 0xFFFFFFFF {
			return axerr.New("engine: divide overflow")
		}
		m.Regs.Write32(cpu.EAX, uint32(q))
		m.Regs.Write32(cpu.EDX, uint32(r))
	default:
		divisor, aerr := readOperandT[uint64](m, rm)
		if aerr != nil {
			return aerr
		}
		if divisor == 0 {
			return axerr.New("engine: divide by zero")
		}
		hi, lo := m.Regs.Read64(cpu.RDX), m.Regs.Read64(cpu.RAX)
		if hi >= divisor {
			return axerr.New("engine: divide overflow")
		}
		q, r := bits.Div64(hi, lo, divisor)
		m.Regs.Write64(cpu.RAX, q)
		m.Regs.Write64(cpu.RDX, r)
	}
	return nil
}

// execIDIV is the single-operand signed divide, truncating toward zero
// with a remainder that takes the dividend's sign. Go's / and % already
// behave that way for native widths; the 64-bit case needs a 128-bit
// dividend, which goes through math/big.
func execIDIV(m *Machine, rm operand.Resolved) *axerr.Error {
	switch rm.Width {
	case 8:
		divisor, aerr := readOperandT[uint8](m, rm)
		if aerr != nil {
			return aerr
		}
		if divisor == 0 {
			return axerr.New("engine: divide by zero")
		}
		dividend := int16(m.Regs.Read16(cpu.AX))
		d := int16(int8(divisor))
		q, r := dividend/d, dividend%d
		if q != int16(int8(q)) {
			return axerr.New("engine: divide overflow")
		}
		m.Regs.Write8(cpu.AL, uint8(q))
		m.Regs.Write8(cpu.AH, uint8(r))
	case 16:
		divisor, aerr := readOperandT[uint16](m, rm)
		if aerr != nil {
			return aerr
		}
		if divisor == 0 {
			return axerr.New("engine: divide by zero")
		}
		dividend := int32(uint32(m.Regs.Read16(cpu.DX))<<16 | uint32(m.Regs.Read16(cpu.AX)))
		d := int32(int16(divisor))
		q, r := dividend/d, dividend%d
		if q != int32(int16(q)) {
			return axerr.New("engine: divide overflow")
		}
		m.Regs.Write16(cpu.AX, uint16(q))
		m.Regs.Write16(cpu.DX, uint16(r))
	case 32:
		divisor, aerr := readOperandT[uint32](m, rm)
		if aerr != nil {
			return aerr
		}
		if divisor == 0 {
			return axerr.New("engine: divide by zero")
		}
		dividend := int64(uint64(m.Regs.Read32(cpu.EDX))<<32 | uint64(m.Regs.Read32(cpu.EAX)))
		d := int64(int32(divisor))
		q, r := dividend/d, dividend%d
		if q != int64(int32(q)) {
			return axerr.New("engine: divide overflow")
		}
		m.Regs.Write32(cpu.EAX, uint32(q))
		m.Regs.Write32(cpu.EDX, uint32(r))
	default:
		divisor, aerr := readOperandT[uint64](m, rm)
		if aerr != nil {
			return aerr
		}
		d := int64(divisor)
		if d == 0 {
			return axerr.New("engine: divide by zero")
		}
		hi := big.NewInt(int64(m.Regs.Read64(cpu.RDX)))
		hi.Lsh(hi, 64)
		lo := new(big.Int).SetUint64(m.Regs.Read64(cpu.RAX))
		dividend := hi.Add(hi, lo)
		q, r := new(big.Int).QuoRem(dividend, big.NewInt(d), new(big.Int))
		if !q.IsInt64() {
			return axerr.New("engine: divide overflow")
		}
		m.Regs.Write64(cpu.RAX, uint64(q.Int64()))
		m.Regs.Write64(cpu.RDX, uint64(r.Int64()))
	}
	return nil
}
