// Package flags computes RFLAGS bits from a width-typed result plus the
// operation-specific carry/overflow/auxiliary inputs that only the calling
// handler knows how to derive.
package flags

// Flags is the architectural RFLAGS register, or as much of it as this
// emulator models (no TF/IF/IOPL/NT/RF/VM/AC/VIF/VIP/ID support).
type Flags uint64

// Bit positions, per Intel SDM Figure 3-8.
const (
	CF   Flags = 0x0001
	PF   Flags = 0x0004
	AF   Flags = 0x0010
	ZF   Flags = 0x0040
	SF   Flags = 0x0080
	TF   Flags = 0x0100
	IF   Flags = 0x0200
	DF   Flags = 0x0400
	OF   Flags = 0x0800
	IOPL Flags = 0x3000
	NT   Flags = 0x4000
	RF   Flags = 0x10000
	VM   Flags = 0x20000
	AC   Flags = 0x40000
	VIF  Flags = 0x80000
	VIP  Flags = 0x100000
	ID   Flags = 0x200000
)

// Unaffected is the internal sentinel meaning "this operation does not
// touch flags at all". It is never a real stored flag value. Callers pass it as
// the toSet mask to SetResult to get old_flags back unchanged.
const Unaffected Flags = 0x7fffffffffffffff

// unsupported is every bit SetResult refuses to set, because this
// emulator has no model for it (no interrupts, no trap flag, no V8086
// mode).
const unsupported = TF | IF | DF | IOPL | NT | RF | VM | AC | VIF | VIP | ID

// Width is the set of integer widths flag computations operate over.
type Width interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// parityEven reports whether the low byte of v has an even number of set
// bits (the x86 PF definition).
func parityEven[T Width](v T) bool {
	b := uint8(v)
	b ^= b >> 4
	b ^= b >> 2
	b ^= b >> 1
	return b&1 == 0
}

// SetResult computes the new RFLAGS value after an operation that produced
// result, given which bits the operation is allowed to touch (toSet),
// which bits it clears without deriving a new value for (toClear), and the
// carry/overflow/auxiliary bits the caller alone knows how to compute.
//
//   - If toSet == Unaffected, old is returned untouched (the operation does
//     not alter flags at all).
//   - CF/OF/AF are set according to cf/of/af only if the corresponding bit
//     is present in toSet.
//   - ZF is result == 0 and SF is the result's sign bit; both are
//     recomputed whenever the operation touches flags at all, so every
//     caller includes them in toSet.
//   - PF, if present in toSet, is the parity of the low byte of result.
//
// toClear is taken literally, never implied as the complement of toSet:
// handlers that want to clear bits they don't also set must say so.
func SetResult[T Width](old Flags, toSet, toClear Flags, result T, cf, of, af bool) Flags {
	if toSet == Unaffected {
		return old
	}
	if toSet&unsupported != 0 {
		panic("flags: attempt to set an unsupported flag bit")
	}

	n := old &^ toSet &^ toClear

	if toSet&CF != 0 && cf {
		n |= CF
	}
	if toSet&OF != 0 && of {
		n |= OF
	}
	if toSet&AF != 0 && af {
		n |= AF
	}
	if result == 0 {
		n |= ZF
	}
	width := sizeOf(result)
	if result&(T(1)<<(width-1)) != 0 {
		n |= SF
	}
	if toSet&PF != 0 && parityEven(result) {
		n |= PF
	}

	if n&ZF != 0 && n&PF == 0 && toSet&PF != 0 {
		panic("flags: ZF set but PF not set")
	}

	return n
}

func sizeOf[T Width](T) uint {
	var v T
	switch any(v).(type) {
	case uint8:
		return 8
	case uint16:
		return 16
	case uint32:
		return 32
	default:
		return 64
	}
}

// Bits returns the bit width of T, determined from a value of that type.
// Exported for callers outside this package that need the same
// per-width dispatch (e.g. engine's carry/overflow formulas).
func Bits[T Width](v T) uint {
	return sizeOf(v)
}
