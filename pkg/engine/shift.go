package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/flags"
	"github.com/oisee/axvm/pkg/operand"
)

// shiftFlags recomputes CF, OF, SF, ZF, PF after a shift/rotate; AF is
// left undefined by hardware and by this emulator. Rotates only
// architecturally define CF/OF, but SetResult always recomputes SF/ZF from
// the current result once any flag mask is in play (see flags.SetResult),
// so ROL/ROR share this mask too rather than risk stale SF/ZF bits.
const shiftFlags = flags.CF | flags.OF | flags.SF | flags.ZF | flags.PF

// shiftCount resolves and masks a shift/rotate count operand: 5 bits for
// 8/16/32-bit destinations, 6 bits for 64-bit ones (Intel SDM Vol 1 7.1.4).
func shiftCount(width int, count operand.Resolved, m *Machine) uint8 {
	var raw uint8
	switch count.Kind {
	case operand.KindImmediate:
		raw = uint8(count.Imm)
	case operand.KindRegister:
		raw = m.Regs.Read8(count.Reg)
	}
	mask := uint8(0x1F)
	if width == 64 {
		mask = 0x3F
	}
	return raw & mask
}

func rotateLeft[T Width](d T, cnt uint8) T {
	w := uint8(flags.Bits(d))
	cnt %= w
	if cnt == 0 {
		return d
	}
	return d<<cnt | d>>(w-cnt)
}

func rotateRight[T Width](d T, cnt uint8) T {
	w := uint8(flags.Bits(d))
	cnt %= w
	if cnt == 0 {
		return d
	}
	return d>>cnt | d<<(w-cnt)
}

func shlOp[T Width](cnt uint8) func(T) (T, bool, bool, bool) {
	return func(d T) (T, bool, bool, bool) {
		w := uint8(flags.Bits(d))
		result := d << cnt
		var cf bool
		if cnt <= w {
			cf = (d>>(w-cnt))&1 != 0
		}
		of := cnt == 1 && signBit(result) != cf
		return result, cf, of, false
	}
}

func shrOp[T Width](cnt uint8) func(T) (T, bool, bool, bool) {
	return func(d T) (T, bool, bool, bool) {
		w := uint8(flags.Bits(d))
		result := d >> cnt
		var cf bool
		if cnt >= 1 && cnt <= w {
			cf = (d>>(cnt-1))&1 != 0
		}
		of := cnt == 1 && signBit(d)
		return result, cf, of, false
	}
}

func sarOp[T Width](cnt uint8) func(T) (T, bool, bool, bool) {
	return func(d T) (T, bool, bool, bool) {
		w := uint8(flags.Bits(d))
		eff := cnt
		if eff > w-1 {
			eff = w - 1
		}
		sign := signBit(d)
		result := d >> eff
		if sign && eff > 0 {
			result |= ^T(0) << (w - eff)
		}
		var cf bool
		switch {
		case cnt == 0:
			cf = false
		case cnt <= w:
			cf = (d>>(cnt-1))&1 != 0
		default:
			cf = sign
		}
		return result, cf, false, false
	}
}

func rolOp[T Width](cnt uint8) func(T) (T, bool, bool, bool) {
	return func(d T) (T, bool, bool, bool) {
		result := rotateLeft(d, cnt)
		cf := result&1 != 0
		of := cnt == 1 && signBit(result) != cf
		return result, cf, of, false
	}
}

func rorOp[T Width](cnt uint8) func(T) (T, bool, bool, bool) {
	return func(d T) (T, bool, bool, bool) {
		result := rotateRight(d, cnt)
		w := flags.Bits(result)
		cf := (result>>(w-1))&1 != 0
		nextMSB := (result>>(w-2))&1 != 0
		of := cnt == 1 && signBit(result) != nextMSB
		return result, cf, of, false
	}
}

// execSHL, execSHR, execSAR, execROL, execROR all share one shape: resolve
// and mask the count, skip entirely (no write, no flag change) if it came
// out to zero, then run the per-width instantiation of the op.
func execSHL(m *Machine, rm, countOp operand.Resolved) *axerr.Error {
	cnt := shiftCount(rm.Width, countOp, m)
	if cnt == 0 {
		return nil
	}
	switch rm.Width {
	case 8:
		return calcRM(m, rm, shiftFlags, 0, shlOp[uint8](cnt))
	case 16:
		return calcRM(m, rm, shiftFlags, 0, shlOp[uint16](cnt))
	case 32:
		return calcRM(m, rm, shiftFlags, 0, shlOp[uint32](cnt))
	default:
		return calcRM(m, rm, shiftFlags, 0, shlOp[uint64](cnt))
	}
}

func execSHR(m *Machine, rm, countOp operand.Resolved) *axerr.Error {
	cnt := shiftCount(rm.Width, countOp, m)
	if cnt == 0 {
		return nil
	}
	switch rm.Width {
	case 8:
		return calcRM(m, rm, shiftFlags, 0, shrOp[uint8](cnt))
	case 16:
		return calcRM(m, rm, shiftFlags, 0, shrOp[uint16](cnt))
	case 32:
		return calcRM(m, rm, shiftFlags, 0, shrOp[uint32](cnt))
	default:
		return calcRM(m, rm, shiftFlags, 0, shrOp[uint64](cnt))
	}
}

func execSAR(m *Machine, rm, countOp operand.Resolved) *axerr.Error {
	cnt := shiftCount(rm.Width, countOp, m)
	if cnt == 0 {
		return nil
	}
	switch rm.Width {
	case 8:
		return calcRM(m, rm, shiftFlags, 0, sarOp[uint8](cnt))
	case 16:
		return calcRM(m, rm, shiftFlags, 0, sarOp[uint16](cnt))
	case 32:
		return calcRM(m, rm, shiftFlags, 0, sarOp[uint32](cnt))
	default:
		return calcRM(m, rm, shiftFlags, 0, sarOp[uint64](cnt))
	}
}

func execROL(m *Machine, rm, countOp operand.Resolved) *axerr.Error {
	cnt := shiftCount(rm.Width, countOp, m)
	if cnt == 0 {
		return nil
	}
	switch rm.Width {
	case 8:
		return calcRM(m, rm, shiftFlags, 0, rolOp[uint8](cnt))
	case 16:
		return calcRM(m, rm, shiftFlags, 0, rolOp[uint16](cnt))
	case 32:
		return calcRM(m, rm, shiftFlags, 0, rolOp[uint32](cnt))
	default:
		return calcRM(m, rm, shiftFlags, 0, rolOp[uint64](cnt))
	}
}

func execROR(m *Machine, rm, countOp operand.Resolved) *axerr.Error {
	cnt := shiftCount(rm.Width, countOp, m)
	if cnt == 0 {
		return nil
	}
	switch rm.Width {
	case 8:
		return calcRM(m, rm, shiftFlags, 0, rorOp[uint8](cnt))
	case 16:
		return calcRM(m, rm, shiftFlags, 0, rorOp[uint16](cnt))
	case 32:
		return calcRM(m, rm, shiftFlags, 0, rorOp[uint32](cnt))
	default:
		return calcRM(m, rm, shiftFlags, 0, rorOp[uint64](cnt))
	}
}
