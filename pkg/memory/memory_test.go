package memory

import "testing"

func TestWriteReadRoundTrip64(t *testing.T) {
	s := NewSpace()
	if _, err := s.InitZero(0x1000, 0x100, Read|Write, "stack"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write64(0x1000, 0x0123456789ABCDEF); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read64(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x0123456789ABCDEF {
		t.Errorf("Read64 = %#x, want 0x0123456789abcdef", got)
	}
}

// TestEndianness verifies a 64-bit write reads back as the expected
// little-endian byte sequence.
func TestEndianness(t *testing.T) {
	s := NewSpace()
	if _, err := s.InitZero(0, 8, Read|Write, "r"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write64(0, 0x1122334455667788); err != nil {
		t.Fatal(err)
	}
	want := []uint8{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	for i, w := range want {
		got, err := s.Read8(uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Errorf("byte %d = %#x, want %#x", i, got, w)
		}
	}
}

func TestOverlapRejected(t *testing.T) {
	s := NewSpace()
	if _, err := s.InitZero(0x1000, 0x100, Read|Write, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InitZero(0x1080, 0x100, Read|Write, "b"); err == nil {
		t.Error("expected overlap error")
	}
}

func TestUnmappedRead(t *testing.T) {
	s := NewSpace()
	if _, err := s.Read32(0xDEAD); err == nil {
		t.Error("expected unmapped error")
	}
}

func TestNoWritePermission(t *testing.T) {
	s := NewSpace()
	if _, err := s.InitZero(0, 0x10, Read, "ro"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write8(0, 1); err == nil {
		t.Error("expected permission error")
	}
}

func TestNoSplicingAcrossRegions(t *testing.T) {
	s := NewSpace()
	if _, err := s.InitZero(0, 4, Read|Write, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InitZero(4, 4, Read|Write, "b"); err != nil {
		t.Fatal(err)
	}
	// A 64-bit read at address 0 would need 8 bytes, spanning two regions.
	if _, err := s.Read64(0); err == nil {
		t.Error("expected failure reading across a region boundary")
	}
}

func TestFetchCodeTruncatesAtRegionEnd(t *testing.T) {
	s := NewSpace()
	code := []byte{0x90, 0x90, 0x90}
	if _, err := s.InitArea(0x400000, code, Read|Exec, "code"); err != nil {
		t.Fatal(err)
	}
	b, err := s.FetchCode(0x400001, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 2 {
		t.Errorf("FetchCode returned %d bytes, want 2 (truncated at region end)", len(b))
	}
}
