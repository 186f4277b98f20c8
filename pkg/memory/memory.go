// Package memory models the emulator's sparse virtual address space: a
// handful of named, bounded, permissioned regions, read and written
// little-endian, looked up by linear scan. There are no page tables and
// no TLB; the region count stays small.
package memory

import (
	"encoding/binary"

	"github.com/oisee/axvm/internal/axerr"
)

// Permission is a bitmask of the access rights a region grants.
type Permission uint8

const (
	Read Permission = 1 << iota
	Write
	Exec
)

// Region is one named, contiguous span of the address space.
type Region struct {
	Start   uint64
	Length  uint64
	Name    string
	Perm    Permission
	Bytes   []byte
}

func (r *Region) contains(addr, n uint64) bool {
	end := r.Start + r.Length
	return addr >= r.Start && n <= r.Length && addr <= end-n
}

// Space is the emulator's virtual address space: an ordered list of
// non-overlapping regions plus a pointer to the distinguished code region.
type Space struct {
	regions []*Region
	codeIdx int
}

// NewSpace returns an empty address space.
func NewSpace() *Space {
	return &Space{codeIdx: -1}
}

func (s *Space) overlaps(start, length uint64) bool {
	end := start + length
	for _, r := range s.regions {
		rEnd := r.Start + r.Length
		if start < rEnd && r.Start < end {
			return true
		}
	}
	return false
}

// InitArea reserves a new region backed by bytes, which is used directly
// (not copied) as the region's storage. Fails with *overlap* if the span
// overlaps an existing region, *too-large* if start+len would wrap.
func (s *Space) InitArea(start uint64, bytes []byte, perm Permission, name string) (*Region, *axerr.Error) {
	length := uint64(len(bytes))
	if start+length < start {
		return nil, axerr.Errorf("memory: region %q at %#x, length %#x overflows the address space", name, start, length)
	}
	if s.overlaps(start, length) {
		return nil, axerr.Errorf("memory: region %q at %#x overlaps an existing region", name, start)
	}
	r := &Region{Start: start, Length: length, Name: name, Perm: perm, Bytes: bytes}
	s.regions = append(s.regions, r)
	if perm&Exec != 0 && s.codeIdx < 0 {
		s.codeIdx = len(s.regions) - 1
	}
	return r, nil
}

// InitZero reserves a new zero-filled region of the given length.
func (s *Space) InitZero(start, length uint64, perm Permission, name string) (*Region, *axerr.Error) {
	return s.InitArea(start, make([]byte, length), perm, name)
}

// CodeRegion returns the region instruction fetch reads from, or nil if
// none has been reserved with Exec permission yet.
func (s *Space) CodeRegion() *Region {
	if s.codeIdx < 0 {
		return nil
	}
	return s.regions[s.codeIdx]
}

// Regions returns the live region list, in reservation order.
func (s *Space) Regions() []*Region {
	return s.regions
}

// NewSpaceFromRegions rebuilds a Space from a previously captured region
// list (pkg/snapshot's restore path), re-deriving the code-region index
// from each region's Exec permission rather than storing it separately.
func NewSpaceFromRegions(regions []*Region) *Space {
	s := &Space{regions: regions, codeIdx: -1}
	for i, r := range regions {
		if r.Perm&Exec != 0 {
			s.codeIdx = i
			break
		}
	}
	return s
}

func (s *Space) find(addr, n uint64) (*Region, *axerr.Error) {
	for _, r := range s.regions {
		if r.contains(addr, n) {
			return r, nil
		}
	}
	return nil, axerr.Errorf("memory: address %#x (len %d) is not mapped in any region", addr, n)
}

func readN(s *Space, addr uint64, n uint64) ([]byte, *axerr.Error) {
	r, err := s.find(addr, n)
	if err != nil {
		return nil, err
	}
	if r.Perm&Read == 0 {
		return nil, axerr.Errorf("memory: region %q at %#x is not readable", r.Name, addr)
	}
	off := addr - r.Start
	return r.Bytes[off : off+n], nil
}

func writeSpan(s *Space, addr uint64, n uint64) ([]byte, *axerr.Error) {
	r, err := s.find(addr, n)
	if err != nil {
		return nil, err
	}
	if r.Perm&Write == 0 {
		return nil, axerr.Errorf("memory: region %q at %#x is not writable", r.Name, addr)
	}
	off := addr - r.Start
	return r.Bytes[off : off+n], nil
}

// Read8 loads one byte at addr.
func (s *Space) Read8(addr uint64) (uint8, *axerr.Error) {
	b, err := readN(s, addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Write8 stores one byte at addr.
func (s *Space) Write8(addr uint64, v uint8) *axerr.Error {
	b, err := writeSpan(s, addr, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// Read16 loads a little-endian 16-bit value at addr. Fails rather than
// splicing across a region boundary.
func (s *Space) Read16(addr uint64) (uint16, *axerr.Error) {
	b, err := readN(s, addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Write16 stores a little-endian 16-bit value at addr.
func (s *Space) Write16(addr uint64, v uint16) *axerr.Error {
	b, err := writeSpan(s, addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

// Read32 loads a little-endian 32-bit value at addr.
func (s *Space) Read32(addr uint64) (uint32, *axerr.Error) {
	b, err := readN(s, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Write32 stores a little-endian 32-bit value at addr.
func (s *Space) Write32(addr uint64, v uint32) *axerr.Error {
	b, err := writeSpan(s, addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// Read64 loads a little-endian 64-bit value at addr.
func (s *Space) Read64(addr uint64) (uint64, *axerr.Error) {
	b, err := readN(s, addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Write64 stores a little-endian 64-bit value at addr.
func (s *Space) Write64(addr uint64, v uint64) *axerr.Error {
	b, err := writeSpan(s, addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}

// Read128 loads a little-endian 128-bit value at addr (MOVUPS), returned
// as independent low/high 64-bit halves.
func (s *Space) Read128(addr uint64) (lo, hi uint64, aerr *axerr.Error) {
	b, err := readN(s, addr, 16)
	if err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:]), nil
}

// Write128 stores a little-endian 128-bit value at addr.
func (s *Space) Write128(addr uint64, lo, hi uint64) *axerr.Error {
	b, err := writeSpan(s, addr, 16)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b[:8], lo)
	binary.LittleEndian.PutUint64(b[8:], hi)
	return nil
}

// ReadBytes fetches a raw span of n bytes from whichever readable region
// contains it. Instruction fetch does not use it; see FetchCode.
func (s *Space) ReadBytes(addr uint64, n int) ([]byte, *axerr.Error) {
	return readN(s, addr, uint64(n))
}

// FetchCode returns up to max bytes starting at addr from the code region,
// truncated to however many bytes remain in that region. Used by the
// execution loop, which does not know an instruction's length until after
// decoding it.
func (s *Space) FetchCode(addr uint64, max int) ([]byte, *axerr.Error) {
	r := s.CodeRegion()
	if r == nil {
		return nil, axerr.New("memory: no code region reserved")
	}
	if addr < r.Start || addr >= r.Start+r.Length {
		return nil, axerr.Errorf("memory: fetch address %#x outside code region %q", addr, r.Name)
	}
	if r.Perm&Exec == 0 {
		return nil, axerr.Errorf("memory: region %q is not executable", r.Name)
	}
	off := addr - r.Start
	avail := r.Length - off
	n := uint64(max)
	if avail < n {
		n = avail
	}
	return r.Bytes[off : off+n], nil
}
