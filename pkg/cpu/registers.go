// Package cpu holds the emulator's architectural register file: the 16
// general-purpose registers in their 64/32/16/8-bit views, RIP, the XMM
// bank, and the FS/GS segment-base slots.
package cpu

// Register identifies one addressable register view. It is a closed
// enumeration: every sub-register alias x86-64 exposes gets its own
// constant, grouped by width so that Width and gprIndex can be computed
// with range checks instead of a lookup table.
type Register uint16

const (
	_ Register = iota
	RIP

	// 64-bit general-purpose registers, canonical order.
	RAX
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	// 32-bit views, same order as the 64-bit block above.
	EAX
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
	R8D
	R9D
	R10D
	R11D
	R12D
	R13D
	R14D
	R15D

	// 16-bit views.
	AX
	CX
	DX
	BX
	SP
	BP
	SI
	DI
	R8W
	R9W
	R10W
	R11W
	R12W
	R13W
	R14W
	R15W

	// 8-bit low-byte views. SPL/BPL/SIL/DIL only exist with a REX prefix;
	// the decoder adapter is responsible for never producing them without one.
	AL
	CL
	DL
	BL
	SPL
	BPL
	SIL
	DIL
	R8L
	R9L
	R10L
	R11L
	R12L
	R13L
	R14L
	R15L

	// 8-bit high-byte views. Only RAX/RCX/RDX/RBX have one.
	AH
	CH
	DH
	BH

	// XMM bank.
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15

	// Segment-base pseudo-registers (flat model, no descriptor tables).
	FS
	GS

	// The remaining segment registers. Legal as override prefixes on
	// memory operands, where the flat model ignores them; they carry no
	// base value and are never read or written.
	CS
	SS
	DS
	ES
)

// Width returns the declared bit width of reg. Panics on an unrecognized
// register value; that is always a decoder or engine bug, never caller input.
func Width(reg Register) int {
	switch {
	case reg == RIP:
		return 64
	case reg >= RAX && reg <= R15:
		return 64
	case reg >= EAX && reg <= R15D:
		return 32
	case reg >= AX && reg <= R15W:
		return 16
	case reg >= AL && reg <= R15L:
		return 8
	case reg >= AH && reg <= BH:
		return 8
	case reg >= XMM0 && reg <= XMM15:
		return 128
	case reg == FS || reg == GS:
		return 64
	case reg >= CS && reg <= ES:
		return 16
	default:
		panic("cpu: unknown register")
	}
}

// isHigh8 reports whether reg is one of the historical high-byte aliases
// AH/CH/DH/BH.
func isHigh8(reg Register) bool {
	return reg >= AH && reg <= BH
}

// gprIndex returns the 0..15 slot of the 64-bit parent register that reg
// aliases into, following the identical ordering of every width block
// above (RAX/RCX/RDX/RBX/RSP/RBP/RSI/RDI/R8..R15). AH/CH/DH/BH are the one
// exception: there are only four of them, aliasing RAX..RBX (index 0..3).
func gprIndex(reg Register) int {
	switch {
	case reg >= RAX && reg <= R15:
		return int(reg - RAX)
	case reg >= EAX && reg <= R15D:
		return int(reg - EAX)
	case reg >= AX && reg <= R15W:
		return int(reg - AX)
	case reg >= AL && reg <= R15L:
		return int(reg - AL)
	case reg >= AH && reg <= BH:
		return int(reg - AH)
	default:
		panic("cpu: register has no GPR parent")
	}
}

// U128 is an opaque 128-bit integer slot, used for XMM registers. Lo holds
// bits 63..0, Hi holds bits 127..64.
type U128 struct {
	Lo, Hi uint64
}

// Registers is the emulator's register file: 16 GPR slots addressed
// through every sub-register alias, RIP, 16 XMM slots, and the FS/GS
// segment bases. It is a flat value type, cheap to copy and snapshot.
type Registers struct {
	rip uint64
	gpr [16]uint64
	xmm [16]U128
	fs  uint64
	gs  uint64
}

// NewRegisters returns a zeroed register file with RIP set to rip.
func NewRegisters(rip uint64) Registers {
	return Registers{rip: rip}
}

func widthMismatch(reg Register, n int) {
	panic("cpu: width mismatch reading/writing register")
}

func checkWidth(reg Register, n int) {
	if Width(reg) != n {
		widthMismatch(reg, n)
	}
}

// Read8 returns the 8-bit value of reg, respecting the AH/CH/DH/BH
// high-byte aliasing rule.
func (r *Registers) Read8(reg Register) uint8 {
	checkWidth(reg, 8)
	idx := gprIndex(reg)
	if isHigh8(reg) {
		return uint8(r.gpr[idx] >> 8)
	}
	return uint8(r.gpr[idx])
}

// Write8 writes the 8-bit value of reg. Bits 63..8 (or 63..16 and 7..0 for
// a high-byte alias) of the 64-bit parent are left unchanged.
func (r *Registers) Write8(reg Register, v uint8) {
	checkWidth(reg, 8)
	idx := gprIndex(reg)
	if isHigh8(reg) {
		r.gpr[idx] = (r.gpr[idx] &^ 0xFF00) | (uint64(v) << 8)
	} else {
		r.gpr[idx] = (r.gpr[idx] &^ 0xFF) | uint64(v)
	}
}

// Read16 returns the 16-bit value of reg.
func (r *Registers) Read16(reg Register) uint16 {
	checkWidth(reg, 16)
	return uint16(r.gpr[gprIndex(reg)])
}

// Write16 writes the 16-bit value of reg, leaving bits 63..16 of the
// parent unchanged.
func (r *Registers) Write16(reg Register, v uint16) {
	checkWidth(reg, 16)
	idx := gprIndex(reg)
	r.gpr[idx] = (r.gpr[idx] &^ 0xFFFF) | uint64(v)
}

// Read32 returns the 32-bit value of reg.
func (r *Registers) Read32(reg Register) uint32 {
	checkWidth(reg, 32)
	return uint32(r.gpr[gprIndex(reg)])
}

// Write32 writes the 32-bit value of reg. Per x86-64 semantics this
// zero-extends into the parent 64-bit register: bits 63..32 become 0.
func (r *Registers) Write32(reg Register, v uint32) {
	checkWidth(reg, 32)
	r.gpr[gprIndex(reg)] = uint64(v)
}

// Read64 returns the 64-bit value of reg (a GPR, RIP, or FS/GS).
func (r *Registers) Read64(reg Register) uint64 {
	checkWidth(reg, 64)
	switch {
	case reg == RIP:
		return r.rip
	case reg == FS:
		return r.fs
	case reg == GS:
		return r.gs
	default:
		return r.gpr[gprIndex(reg)]
	}
}

// Write64 fully replaces the 64-bit value of reg.
func (r *Registers) Write64(reg Register, v uint64) {
	checkWidth(reg, 64)
	switch {
	case reg == RIP:
		r.rip = v
	case reg == FS:
		r.fs = v
	case reg == GS:
		r.gs = v
	default:
		r.gpr[gprIndex(reg)] = v
	}
}

// Read128 returns the 128-bit value of an XMM register.
func (r *Registers) Read128(reg Register) U128 {
	checkWidth(reg, 128)
	return r.xmm[int(reg-XMM0)]
}

// Write128 fully replaces the 128-bit value of an XMM register.
func (r *Registers) Write128(reg Register, v U128) {
	checkWidth(reg, 128)
	r.xmm[int(reg-XMM0)] = v
}

// RIP is a convenience accessor mirroring Read64(RIP); the execution loop
// reads it every step.
func (r *Registers) RIP() uint64 { return r.rip }

// SetRIP is a convenience accessor mirroring Write64(RIP, v).
func (r *Registers) SetRIP(v uint64) { r.rip = v }

// Snapshot is the gob-encodable export of a register file, used by
// pkg/snapshot for save/restore. Unlike Registers itself, every field
// here is exported so encoding/gob can see it.
type Snapshot struct {
	RIP uint64
	GPR [16]uint64
	XMM [16]U128
	FS  uint64
	GS  uint64
}

// Snapshot captures the current register file as a Snapshot value.
func (r *Registers) Snapshot() Snapshot {
	return Snapshot{RIP: r.rip, GPR: r.gpr, XMM: r.xmm, FS: r.fs, GS: r.gs}
}

// Restore replaces the register file's contents with a previously captured
// Snapshot.
func (r *Registers) Restore(s Snapshot) {
	r.rip = s.RIP
	r.gpr = s.GPR
	r.xmm = s.XMM
	r.fs = s.FS
	r.gs = s.GS
}
