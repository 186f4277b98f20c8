package cpu

import "testing"

// TestWrite32ZeroExtends verifies the load-bearing invariant that a 32-bit
// write clears the upper half of the parent 64-bit register.
func TestWrite32ZeroExtends(t *testing.T) {
	var r Registers
	r.Write64(RAX, 0xFFFFFFFFFFFFFFFF)
	r.Write32(EAX, 0x000000AA)

	if got := r.Read64(RAX); got != 0xAA {
		t.Errorf("RAX after 32-bit write = %#x, want 0xAA", got)
	}
	if got := r.Read32(EAX); got != 0xAA {
		t.Errorf("EAX = %#x, want 0xAA", got)
	}
}

// TestWrite16PreservesUpper verifies a 16-bit write leaves bits 63..16 alone.
func TestWrite16PreservesUpper(t *testing.T) {
	var r Registers
	r.Write64(RBX, 0x1122334455667788)
	r.Write16(BX, 0xBEEF)

	if got := r.Read64(RBX); got != 0x112233445566BEEF {
		t.Errorf("RBX = %#x, want 0x112233445566beef", got)
	}
}

// TestWrite8LowPreservesRest verifies a low-byte write leaves bits 63..8 alone.
func TestWrite8LowPreservesRest(t *testing.T) {
	var r Registers
	r.Write64(RCX, 0x1122334455667788)
	r.Write8(CL, 0x00)

	if got := r.Read64(RCX); got != 0x1122334455667700 {
		t.Errorf("RCX = %#x, want 0x1122334455667700", got)
	}
}

// TestWrite8HighAlias verifies AH/BH/CH/DH only touch bits 15..8.
func TestWrite8HighAlias(t *testing.T) {
	var r Registers
	r.Write64(RDX, 0x1122334455667788)
	r.Write8(DH, 0x00)

	if got := r.Read64(RDX); got != 0x1122334455660088 {
		t.Errorf("RDX = %#x, want 0x1122334455660088", got)
	}
	if got := r.Read8(DL); got != 0x88 {
		t.Errorf("DL = %#x, want 0x88 (untouched)", got)
	}
}

// TestSubRegisterAliasing checks that the 32/16/8-bit views of RSI (ESI,
// SI, SIL) read the corresponding bit-slices of the 64-bit parent.
func TestSubRegisterAliasing(t *testing.T) {
	var r Registers
	r.Write64(RSI, 0x0102030405060708)

	if got := r.Read32(ESI); got != 0x05060708 {
		t.Errorf("ESI = %#x, want 0x05060708", got)
	}
	if got := r.Read16(SI); got != 0x0708 {
		t.Errorf("SI = %#x, want 0x0708", got)
	}
	if got := r.Read8(SIL); got != 0x08 {
		t.Errorf("SIL = %#x, want 0x08", got)
	}
}

// TestWidthMismatchPanics ensures a width/register mismatch is a fatal
// programming error, not a silently-tolerated call.
func TestWidthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on width mismatch")
		}
	}()
	var r Registers
	r.Read32(RAX) // RAX is a 64-bit register name
}

// TestXMMRoundTrip verifies 128-bit XMM storage is independent of the GPR bank.
func TestXMMRoundTrip(t *testing.T) {
	var r Registers
	v := U128{Lo: 0x0123456789ABCDEF, Hi: 0xFEDCBA9876543210}
	r.Write128(XMM3, v)

	if got := r.Read128(XMM3); got != v {
		t.Errorf("XMM3 = %+v, want %+v", got, v)
	}
	if got := r.Read128(XMM4); got != (U128{}) {
		t.Errorf("XMM4 = %+v, want zero value (untouched)", got)
	}
}

// TestSegmentBases verifies FS/GS are simple independent 64-bit slots.
func TestSegmentBases(t *testing.T) {
	var r Registers
	r.Write64(FS, 0x7000)
	r.Write64(GS, 0x8000)

	if got := r.Read64(FS); got != 0x7000 {
		t.Errorf("FS = %#x, want 0x7000", got)
	}
	if got := r.Read64(GS); got != 0x8000 {
		t.Errorf("GS = %#x, want 0x8000", got)
	}
}

// TestRIPAccessor verifies RIP() / SetRIP() mirror ReadN/WriteN on RIP.
func TestRIPAccessor(t *testing.T) {
	r := NewRegisters(0x401000)
	if got := r.RIP(); got != 0x401000 {
		t.Errorf("RIP() = %#x, want 0x401000", got)
	}
	r.SetRIP(0x401005)
	if got := r.Read64(RIP); got != 0x401005 {
		t.Errorf("Read64(RIP) = %#x, want 0x401005", got)
	}
}
