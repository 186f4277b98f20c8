package decode

import (
	"testing"

	"github.com/oisee/axvm/pkg/cpu"
)

// TestDecodeMovImm verifies the basic shape of a decoded instruction:
// length, mnemonic, form, and both operand descriptors.
func TestDecodeMovImm(t *testing.T) {
	in, aerr := Decode([]byte{0xB8, 0x2A, 0x00, 0x00, 0x00}, 0x401000)
	if aerr != nil {
		t.Fatalf("Decode: %s", aerr.Error())
	}

	if in.Length != 5 {
		t.Errorf("Length = %d, want 5", in.Length)
	}
	if in.Mnemonic != MOV {
		t.Errorf("Mnemonic = %s, want MOV", in.Mnemonic)
	}
	if in.OpcodeForm != FormRMImm {
		t.Errorf("OpcodeForm = %d, want FormRMImm", in.OpcodeForm)
	}
	if len(in.Operands) != 2 {
		t.Fatalf("got %d operands, want 2", len(in.Operands))
	}
	dst, src := in.Operands[0], in.Operands[1]
	if dst.Kind != KindRegister || dst.Reg != cpu.EAX || dst.Width != 32 {
		t.Errorf("dst = %+v, want register EAX width 32", dst)
	}
	if src.Kind != KindImmediate || src.Imm != 42 || src.Width != 32 {
		t.Errorf("src = %+v, want immediate 42 width 32", src)
	}
}

// TestDecodeBranchTarget verifies near-branch targets come out as absolute
// addresses: rip + instruction length + relative displacement.
func TestDecodeBranchTarget(t *testing.T) {
	in, aerr := Decode([]byte{0x77, 0x08}, 0x401000) // ja +8
	if aerr != nil {
		t.Fatalf("Decode: %s", aerr.Error())
	}

	if in.Mnemonic != JA {
		t.Errorf("Mnemonic = %s, want JA", in.Mnemonic)
	}
	if in.OpcodeForm != FormNearBranch {
		t.Errorf("OpcodeForm = %d, want FormNearBranch", in.OpcodeForm)
	}
	if in.BranchTarget != 0x40100A {
		t.Errorf("BranchTarget = %#x, want 0x40100a", in.BranchTarget)
	}
}

// TestDecodeBackwardBranch verifies a negative rel8 resolves below rip.
func TestDecodeBackwardBranch(t *testing.T) {
	in, aerr := Decode([]byte{0xEB, 0xFE}, 0x401000) // jmp self
	if aerr != nil {
		t.Fatalf("Decode: %s", aerr.Error())
	}
	if in.BranchTarget != 0x401000 {
		t.Errorf("BranchTarget = %#x, want 0x401000 (self)", in.BranchTarget)
	}
}

// TestDecodeRet verifies zero-operand instructions decode with FormNone.
func TestDecodeRet(t *testing.T) {
	in, aerr := Decode([]byte{0xC3}, 0x401000)
	if aerr != nil {
		t.Fatalf("Decode: %s", aerr.Error())
	}
	if in.Mnemonic != RET || in.OpcodeForm != FormNone {
		t.Errorf("got %s form %d, want RET FormNone", in.Mnemonic, in.OpcodeForm)
	}
	if len(in.Operands) != 0 {
		t.Errorf("got %d operands, want 0", len(in.Operands))
	}
}

// TestDecodeMemoryOperand verifies base/index/scale/displacement come
// through the adapter intact.
func TestDecodeMemoryOperand(t *testing.T) {
	// mov rax, [rsi+rbx*1+8]
	in, aerr := Decode([]byte{0x48, 0x8B, 0x44, 0x1E, 0x08}, 0x401000)
	if aerr != nil {
		t.Fatalf("Decode: %s", aerr.Error())
	}
	if len(in.Operands) != 2 {
		t.Fatalf("got %d operands, want 2", len(in.Operands))
	}
	mem := in.Operands[1]
	if mem.Kind != KindMemory {
		t.Fatalf("src kind = %d, want KindMemory", mem.Kind)
	}
	if mem.Mem.Base != cpu.RSI || mem.Mem.Index != cpu.RBX || mem.Mem.Scale != 1 || mem.Mem.Disp != 8 {
		t.Errorf("mem = %+v, want base RSI index RBX scale 1 disp 8", mem.Mem)
	}
	if mem.Width != 64 {
		t.Errorf("mem width = %d, want 64", mem.Width)
	}
}

// TestDecodeRexByteRegister verifies the x86asm R8B-style names land on
// this emulator's R8L-style constants.
func TestDecodeRexByteRegister(t *testing.T) {
	in, aerr := Decode([]byte{0x41, 0xB0, 0x05}, 0x401000) // mov r8b, 5
	if aerr != nil {
		t.Fatalf("Decode: %s", aerr.Error())
	}
	dst := in.Operands[0]
	if dst.Reg != cpu.R8L || dst.Width != 8 {
		t.Errorf("dst = %+v, want register R8L width 8", dst)
	}
}

// TestDecodeSegmentPrefixedMemoryOperand verifies loads carrying a
// segment-override prefix byte decode cleanly; whether the override has
// any effect is the address resolver's concern, not the decoder's.
func TestDecodeSegmentPrefixedMemoryOperand(t *testing.T) {
	cases := []struct {
		name string
		code []byte
	}{
		{"ds", []byte{0x3E, 0x48, 0x8B, 0x03}}, // ds mov rax, [rbx]
		{"ss", []byte{0x36, 0x48, 0x8B, 0x03}}, // ss mov rax, [rbx]
		{"gs", []byte{0x65, 0x48, 0x8B, 0x03}}, // gs mov rax, [rbx]
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, aerr := Decode(tc.code, 0x401000)
			if aerr != nil {
				t.Fatalf("Decode: %s", aerr.Error())
			}
			if len(in.Operands) != 2 {
				t.Fatalf("got %d operands, want 2", len(in.Operands))
			}
			mem := in.Operands[1]
			if mem.Kind != KindMemory || mem.Mem.Base != cpu.RBX {
				t.Errorf("src = %+v, want memory operand based on RBX", mem)
			}
		})
	}
}

// TestDecodeUnimplementedMnemonic verifies instructions outside the
// supported set are rejected with a fatal error, not silently skipped.
func TestDecodeUnimplementedMnemonic(t *testing.T) {
	_, aerr := Decode([]byte{0xF4}, 0x401000) // hlt
	if aerr == nil {
		t.Fatal("expected an unimplemented-mnemonic error for hlt")
	}
	if aerr.NormalFinish() {
		t.Error("decode failure must not be a normal finish")
	}
}

// TestDecodeTruncatedBytes verifies an incomplete instruction is a decode
// failure rather than a partial result.
func TestDecodeTruncatedBytes(t *testing.T) {
	_, aerr := Decode([]byte{0x48}, 0x401000) // lone REX prefix
	if aerr == nil {
		t.Fatal("expected a decode error for truncated bytes")
	}
}
