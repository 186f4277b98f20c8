package engine

import (
	"context"
	"testing"

	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/flags"
)

// newTestMachine builds a Machine with a tiny code region at 0x401000
// and a 16-byte zeroed stack below RSP=0x8000.
func newTestMachine(t *testing.T, code []byte) *Machine {
	t.Helper()
	m, aerr := NewMachine(Config{
		Code:      code,
		CodeAddr:  0x401000,
		RIP:       0x401000,
		StackTop:  0x8000,
		StackSize: 16,
		Budget:    1000,
	})
	if aerr != nil {
		t.Fatalf("NewMachine: %s", aerr.Error())
	}
	return m
}

func runToFinish(t *testing.T, m *Machine) {
	t.Helper()
	if aerr := m.Run(context.Background()); aerr != nil {
		t.Fatalf("Run: %s", aerr.Error())
	}
	if !m.Finished() {
		t.Fatal("expected machine to reach normal finish")
	}
}

// Scenario 1: mov eax, 42 ; ret from the bottom frame.
func TestScenarioMovRet(t *testing.T) {
	code := []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3}
	m := newTestMachine(t, code)
	runToFinish(t, m)

	if got := m.Regs.Read64(cpu.RAX); got != 0x2A {
		t.Errorf("RAX = %#x, want 0x2A", got)
	}
	if got := m.Regs.Read64(cpu.RSP); got != 0x8008 {
		t.Errorf("RSP = %#x, want 0x8008", got)
	}
}

// Scenario 2: mov rax,4 ; cmp rax,3 ; ja .end ; ... ; nop. Branch taken,
// CF=0 and ZF=0 after the cmp.
func TestScenarioCmpJa(t *testing.T) {
	code := []byte{
		0x48, 0xC7, 0xC0, 0x04, 0x00, 0x00, 0x00, // mov rax, 4
		0x48, 0x83, 0xF8, 0x03, // cmp rax, 3
		0x77, 0x08, // ja +8 (skip the 0xCC filler, reach the nop)
		0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
		0x90, // nop
		0xC3, // ret
	}
	m := newTestMachine(t, code)

	// Step through the cmp by hand to check the flag state, then let
	// the rest run to finish.
	if aerr := m.Step(); aerr != nil {
		t.Fatalf("step mov: %s", aerr.Error())
	}
	if aerr := m.Step(); aerr != nil {
		t.Fatalf("step cmp: %s", aerr.Error())
	}
	if m.RFlags&flags.CF != 0 {
		t.Error("CF set after cmp rax,3 with rax=4, want clear")
	}
	if m.RFlags&flags.ZF != 0 {
		t.Error("ZF set after cmp rax,3 with rax=4, want clear")
	}

	runToFinish(t, m)
	if got := m.Regs.Read64(cpu.RAX); got != 4 {
		t.Errorf("RAX = %#x, want 4", got)
	}
}

// Scenario 4: mov al, 0 ; add al, 0xFF.
func TestScenarioAddAL(t *testing.T) {
	code := []byte{
		0xB0, 0x00, // mov al, 0
		0x04, 0xFF, // add al, 0xFF
		0xC3, // ret
	}
	m := newTestMachine(t, code)
	runToFinish(t, m)

	if got := m.Regs.Read8(cpu.AL); got != 0xFF {
		t.Errorf("AL = %#x, want 0xFF", got)
	}
	want := flags.PF | flags.SF
	if m.RFlags&(flags.CF|flags.OF|flags.SF|flags.ZF|flags.PF|flags.AF) != want {
		t.Errorf("flags = %#x, want CF=0 OF=0 SF=1 ZF=0 PF=1 AF=0 (%#x)", m.RFlags, want)
	}
}

// Scenario 5: mov rax, 0 ; div rax. Divide-by-zero is fatal and leaves
// no register writes from the div.
func TestScenarioDivByZero(t *testing.T) {
	code := []byte{
		0x48, 0xC7, 0xC0, 0x00, 0x00, 0x00, 0x00, // mov rax, 0
		0x48, 0xF7, 0xF0, // div rax
	}
	m := newTestMachine(t, code)
	m.Regs.Write64(cpu.RDX, 0x1122334455667788)

	if aerr := m.Step(); aerr != nil {
		t.Fatalf("step mov: %s", aerr.Error())
	}
	aerr := m.Step()
	if aerr == nil {
		t.Fatal("expected divide-by-zero error")
	}
	if aerr.NormalFinish() {
		t.Fatal("divide-by-zero must not be a normal finish")
	}
	if got := m.Regs.Read64(cpu.RDX); got != 0x1122334455667788 {
		t.Errorf("RDX = %#x, want unchanged 0x1122334455667788 (div must not partially apply)", got)
	}
}

// Scenario 6: mov rax, 0x9c653bad71abdc29 ; cqo. RDX becomes all-ones
// because RAX's MSB is 1.
func TestScenarioCqoSignExtend(t *testing.T) {
	code := []byte{
		0x48, 0xB8, 0x29, 0xDC, 0xAB, 0x71, 0xAD, 0x3B, 0x65, 0x9C, // mov rax, imm64
		0x48, 0x99, // cqo
		0xC3, // ret
	}
	m := newTestMachine(t, code)
	runToFinish(t, m)

	if got := m.Regs.Read64(cpu.RAX); got != 0x9c653bad71abdc29 {
		t.Errorf("RAX = %#x, want 0x9c653bad71abdc29", got)
	}
	if got := m.Regs.Read64(cpu.RDX); got != 0xFFFFFFFFFFFFFFFF {
		t.Errorf("RDX = %#x, want all-ones", got)
	}
}

// TestRetPastStackTopIsNormalFinish verifies popping at or above StackTop
// terminates cleanly rather than faulting.
func TestRetPastStackTopIsNormalFinish(t *testing.T) {
	code := []byte{0xC3} // ret, nothing pushed
	m := newTestMachine(t, code)
	runToFinish(t, m)
}

// TestXorSelfClearsAndSetsParity verifies XOR r, r always yields 0 with
// ZF=1, PF=1, SF=0, CF=0, OF=0 regardless of r's prior value.
func TestXorSelfClearsAndSetsParity(t *testing.T) {
	code := []byte{
		0x48, 0x31, 0xC0, // xor rax, rax
		0xC3,
	}
	m := newTestMachine(t, code)
	m.Regs.Write64(cpu.RAX, 0xDEADBEEFCAFEBABE)
	runToFinish(t, m)

	if got := m.Regs.Read64(cpu.RAX); got != 0 {
		t.Errorf("RAX = %#x, want 0", got)
	}
	want := flags.ZF | flags.PF
	if m.RFlags&(flags.CF|flags.OF|flags.SF|flags.ZF|flags.PF) != want {
		t.Errorf("flags = %#x, want ZF|PF only (%#x)", m.RFlags, want)
	}
}

// TestWrite32ZeroExtendsThroughEngine exercises the 32-bit-write
// zero-extension invariant via an actual decoded MOV, not just the
// register-file unit test.
func TestWrite32ZeroExtendsThroughEngine(t *testing.T) {
	code := []byte{
		0x48, 0xB8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // mov rax, -1
		0xB8, 0xAA, 0x00, 0x00, 0x00, // mov eax, 0xAA
		0xC3,
	}
	m := newTestMachine(t, code)
	runToFinish(t, m)
	if got := m.Regs.Read64(cpu.RAX); got != 0xAA {
		t.Errorf("RAX = %#x, want 0xAA (32-bit write must zero-extend)", got)
	}
}
