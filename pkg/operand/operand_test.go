package operand

import (
	"testing"

	"github.com/oisee/axvm/internal/decode"
	"github.com/oisee/axvm/pkg/cpu"
)

// TestAddrBaseIndexScaleDisp verifies the effective-address formula:
// base + index*scale + displacement, modulo 2^64.
func TestAddrBaseIndexScaleDisp(t *testing.T) {
	var regs cpu.Registers
	regs.Write64(cpu.RBX, 0x1000)
	regs.Write64(cpu.RSI, 0x10)

	mem := decode.MemOperand{Base: cpu.RBX, Index: cpu.RSI, Scale: 4, Disp: 8}
	got := Addr(mem, &regs)
	want := uint64(0x1000 + 0x10*4 + 8)
	if got != want {
		t.Errorf("Addr = %#x, want %#x", got, want)
	}
}

// TestAddrWrapsModulo64 verifies effective-address arithmetic wraps at
// 2^64 rather than overflowing into an error.
func TestAddrWrapsModulo64(t *testing.T) {
	var regs cpu.Registers
	regs.Write64(cpu.RAX, ^uint64(0))

	mem := decode.MemOperand{Base: cpu.RAX, Disp: 2}
	if got := Addr(mem, &regs); got != 1 {
		t.Errorf("Addr = %#x, want 1 (wrapped)", got)
	}
}

// TestAddrFSSegmentOverride verifies an FS-prefixed memory operand adds
// the FS segment base on top of base+index*scale+disp.
func TestAddrFSSegmentOverride(t *testing.T) {
	var regs cpu.Registers
	regs.Write64(cpu.FS, 0x7FFF0000)
	regs.Write64(cpu.RAX, 0x40)

	mem := decode.MemOperand{Segment: cpu.FS, Base: cpu.RAX, Disp: 8}
	got := Addr(mem, &regs)
	want := uint64(0x7FFF0000 + 0x40 + 8)
	if got != want {
		t.Errorf("Addr = %#x, want %#x", got, want)
	}
}

// TestAddrIgnoresNonBaseSegments verifies CS/SS/DS/ES override prefixes
// contribute nothing to the effective address in the flat model, rather
// than being rejected.
func TestAddrIgnoresNonBaseSegments(t *testing.T) {
	var regs cpu.Registers
	regs.Write64(cpu.RBX, 0x2000)

	for _, seg := range []cpu.Register{cpu.CS, cpu.SS, cpu.DS, cpu.ES} {
		mem := decode.MemOperand{Segment: seg, Base: cpu.RBX, Disp: 4}
		if got := Addr(mem, &regs); got != 0x2004 {
			t.Errorf("Addr with segment %v = %#x, want 0x2004 (override ignored)", seg, got)
		}
	}
}

// TestResolveImmediatePassesThroughUnchanged verifies Resolve hands the
// decoder's immediate straight through without reinterpreting its sign:
// a sign-extended -1 stays -1 and is not zero-extended from its width;
// handlers truncate it to the width they operate at.
func TestResolveImmediatePassesThroughUnchanged(t *testing.T) {
	var regs cpu.Registers
	op := decode.Operand{Kind: decode.KindImmediate, Width: 8, Imm: -1}
	r, aerr := Resolve(op, &regs)
	if aerr != nil {
		t.Fatalf("Resolve: %s", aerr.Error())
	}
	if r.Imm != -1 {
		t.Errorf("Resolved.Imm = %d, want -1 (handler interprets width)", r.Imm)
	}
}
