package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/cpu"
)

// execCPUID reports zero for every feature leaf. Programs that gate
// behavior on CPUID results take the all-zeroes path.
func execCPUID(m *Machine) *axerr.Error {
	m.Regs.Write32(cpu.EAX, 0)
	m.Regs.Write32(cpu.EBX, 0)
	m.Regs.Write32(cpu.ECX, 0)
	m.Regs.Write32(cpu.EDX, 0)
	return nil
}

// execCQO sign-extends RAX into RDX: all-ones if RAX's sign bit is set,
// all-zeros otherwise.
func execCQO(m *Machine) *axerr.Error {
	rax := m.Regs.Read64(cpu.RAX)
	var rdx uint64
	if rax&(1<<63) != 0 {
		rdx = ^uint64(0)
	}
	m.Regs.Write64(cpu.RDX, rdx)
	return nil
}
