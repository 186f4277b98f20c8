package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/internal/decode"
	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/flags"
)

// execJcc handles every conditional and unconditional near jump. JMP is
// routed here too since it shares FormNearBranch with every Jcc.
func execJcc(m *Machine, in decode.Instruction) *axerr.Error {
	if in.Mnemonic == decode.JMP {
		m.Regs.SetRIP(in.BranchTarget)
		return nil
	}
	taken, aerr := jccTaken(m, in.Mnemonic)
	if aerr != nil {
		return aerr
	}
	if taken {
		m.Regs.SetRIP(in.BranchTarget)
	}
	return nil
}

func jccTaken(m *Machine, mnem decode.Mnemonic) (bool, *axerr.Error) {
	f := m.RFlags
	cf := f&flags.CF != 0
	zf := f&flags.ZF != 0
	sf := f&flags.SF != 0
	of := f&flags.OF != 0
	pf := f&flags.PF != 0
	switch mnem {
	case decode.JE:
		return zf, nil
	case decode.JNE:
		return !zf, nil
	case decode.JA:
		return !cf && !zf, nil
	case decode.JAE:
		return !cf, nil
	case decode.JB:
		return cf, nil
	case decode.JBE:
		return cf || zf, nil
	case decode.JG:
		return !zf && sf == of, nil
	case decode.JGE:
		return sf == of, nil
	case decode.JL:
		return sf != of, nil
	case decode.JLE:
		return zf || sf != of, nil
	case decode.JS:
		return sf, nil
	case decode.JNS:
		return !sf, nil
	case decode.JO:
		return of, nil
	case decode.JNO:
		return !of, nil
	case decode.JP:
		return pf, nil
	case decode.JNP:
		return !pf, nil
	case decode.JCXZ:
		return m.Regs.Read16(cpu.CX) == 0, nil
	case decode.JECXZ:
		return m.Regs.Read32(cpu.ECX) == 0, nil
	case decode.JRCXZ:
		return m.Regs.Read64(cpu.RCX) == 0, nil
	default:
		return false, axerr.Errorf("engine: unimplemented branch condition %s", mnem)
	}
}

// execCALL pushes the return address (RIP already advanced past this
// instruction) and jumps to the decoded branch target, recording the
// target on the call stack for error-detail rendering.
func execCALL(m *Machine, in decode.Instruction) *axerr.Error {
	retAddr := m.Regs.RIP()
	rsp := m.Regs.Read64(cpu.RSP) - 8
	if aerr := m.Mem.Write64(rsp, retAddr); aerr != nil {
		return aerr
	}
	m.setRSP(rsp, "call")
	m.callStack = append(m.callStack, in.BranchTarget)
	m.Regs.SetRIP(in.BranchTarget)
	return nil
}

// execRET pops the return address from [RSP]. Popping at or past
// StackTop means the top-level function has returned with nowhere further
// to go: a normal, successful end of execution, not a fault. The RSP
// adjustment still happens on that path (nothing at or above the stack
// top is mapped, so the read is skipped), leaving the stack balanced for
// final state inspection.
func execRET(m *Machine) *axerr.Error {
	rsp := m.Regs.Read64(cpu.RSP)
	if rsp >= m.StackTop {
		m.setRSP(rsp+8, "ret")
		return axerr.New("engine: returned past the top of the stack").EndExecution()
	}
	target, aerr := m.Mem.Read64(rsp)
	if aerr != nil {
		return aerr
	}
	m.setRSP(rsp+8, "ret")
	m.Regs.SetRIP(target)
	if n := len(m.callStack); n > 0 {
		m.callStack = m.callStack[:n-1]
	}
	return nil
}
