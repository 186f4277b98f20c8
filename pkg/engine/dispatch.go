package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/internal/decode"
	"github.com/oisee/axvm/pkg/operand"
)

// dispatch is the first level of instruction routing: one arm per
// mnemonic, each forwarding to that mnemonic's sub-dispatcher. The
// sub-dispatcher matches on the opcode form and invokes the matching
// handler; unknown forms of a known mnemonic, and unimplemented
// mnemonics, are both fatal, because a decoded-but-unhandled opcode
// means either a decoder/dispatcher mismatch or a real gap.
func dispatch(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.Mnemonic {
	case decode.ADD:
		return mnemonicAdd(m, in)
	case decode.SUB:
		return mnemonicSub(m, in)
	case decode.ADC:
		return mnemonicAdc(m, in)
	case decode.SBB:
		return mnemonicSbb(m, in)
	case decode.CMP:
		return mnemonicCmp(m, in)
	case decode.AND:
		return mnemonicAnd(m, in)
	case decode.OR:
		return mnemonicOr(m, in)
	case decode.XOR:
		return mnemonicXor(m, in)
	case decode.TEST:
		return mnemonicTest(m, in)
	case decode.NEG:
		return mnemonicNeg(m, in)
	case decode.NOT:
		return mnemonicNot(m, in)
	case decode.INC:
		return mnemonicInc(m, in)
	case decode.DEC:
		return mnemonicDec(m, in)
	case decode.SHL:
		return mnemonicShl(m, in)
	case decode.SHR:
		return mnemonicShr(m, in)
	case decode.SAR:
		return mnemonicSar(m, in)
	case decode.ROL:
		return mnemonicRol(m, in)
	case decode.ROR:
		return mnemonicRor(m, in)
	case decode.MOV:
		return mnemonicMov(m, in)
	case decode.MOVZX:
		return mnemonicMovzx(m, in)
	case decode.MOVSX:
		return mnemonicMovsx(m, in)
	case decode.MOVSXD:
		return mnemonicMovsxd(m, in)
	case decode.MOVD:
		return mnemonicMovd(m, in)
	case decode.MOVUPS:
		return mnemonicMovups(m, in)
	case decode.LEA:
		return mnemonicLea(m, in)
	case decode.MUL:
		return mnemonicMul(m, in)
	case decode.IMUL:
		return mnemonicImul(m, in)
	case decode.DIV:
		return mnemonicDiv(m, in)
	case decode.IDIV:
		return mnemonicIdiv(m, in)
	case decode.CMOVA, decode.CMOVAE, decode.CMOVB, decode.CMOVBE, decode.CMOVE,
		decode.CMOVG, decode.CMOVGE, decode.CMOVL, decode.CMOVLE, decode.CMOVNE,
		decode.CMOVNO, decode.CMOVNP, decode.CMOVNS, decode.CMOVO, decode.CMOVP,
		decode.CMOVS:
		return mnemonicCmovcc(m, in)
	case decode.SETA, decode.SETAE, decode.SETB, decode.SETBE, decode.SETE,
		decode.SETG, decode.SETGE, decode.SETL, decode.SETLE, decode.SETNE,
		decode.SETNO, decode.SETNP, decode.SETNS, decode.SETO, decode.SETP,
		decode.SETS:
		return mnemonicSetcc(m, in)
	case decode.JA, decode.JAE, decode.JB, decode.JBE, decode.JCXZ, decode.JE,
		decode.JECXZ, decode.JG, decode.JGE, decode.JL, decode.JLE, decode.JMP,
		decode.JNE, decode.JNO, decode.JNP, decode.JNS, decode.JO, decode.JP,
		decode.JRCXZ, decode.JS:
		return mnemonicJcc(m, in)
	case decode.CALL:
		return mnemonicCall(m, in)
	case decode.RET:
		return mnemonicRet(m, in)
	case decode.PUSH:
		return mnemonicPush(m, in)
	case decode.POP:
		return mnemonicPop(m, in)
	case decode.CPUID:
		return mnemonicCpuid(m, in)
	case decode.CQO:
		return mnemonicCqo(m, in)
	case decode.NOP:
		return mnemonicNop(m, in)
	default:
		return axerr.Errorf("engine: unimplemented mnemonic %s", in.Mnemonic)
	}
}

// unhandledForm is the fatal error every sub-dispatcher returns for an
// opcode form it has no handler for.
func unhandledForm(in decode.Instruction) *axerr.Error {
	return axerr.Errorf("engine: unhandled %s form %s at %#x", in.Mnemonic, in.OpcodeForm, in.RIP)
}

// resolveN resolves an instruction's operands against the current
// register file and checks the count the matched form implies. Memory
// effective addresses are computed once here; handlers never re-derive
// them.
func resolveN(m *Machine, in decode.Instruction, n int) ([]operand.Resolved, *axerr.Error) {
	if len(in.Operands) != n {
		return nil, axerr.Errorf("engine: %s form %s has %d operands, want %d", in.Mnemonic, in.OpcodeForm, len(in.Operands), n)
	}
	out := make([]operand.Resolved, n)
	for i, d := range in.Operands {
		r, aerr := operand.Resolve(d, &m.Regs)
		if aerr != nil {
			return nil, aerr
		}
		out[i] = r
	}
	return out, nil
}

func mnemonicAdd(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execADD(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicSub(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execSUB(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicAdc(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execADC(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicSbb(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execSBB(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicCmp(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execCMP(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicAnd(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execAND(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicOr(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execOR(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicXor(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execXOR(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicTest(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execTEST(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicNeg(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execNEG(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

func mnemonicNot(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execNOT(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

func mnemonicInc(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execINC(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

func mnemonicDec(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execDEC(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

func mnemonicShl(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execSHL(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicShr(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execSHR(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicSar(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execSAR(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicRol(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execROL(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicRor(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execROR(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicMov(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRMR, decode.FormRRM, decode.FormRMImm:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execMOV(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicMovzx(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execMOVZX(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicMovsx(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execMOVSX(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicMovsxd(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execMOVSXD(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicMovd(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execMOVD(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicMovups(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execMOVUPS(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicLea(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execLEA(m, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

func mnemonicMul(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execMUL(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

// mnemonicImul routes IMUL's one-, two-, and three-operand shapes, which
// all decode under one mnemonic and form; the operand count picks the
// handler.
func mnemonicImul(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		switch len(in.Operands) {
		case 1:
			ops, aerr := resolveN(m, in, 1)
			if aerr != nil {
				return aerr
			}
			return execIMUL(m, ops[0])
		case 2:
			ops, aerr := resolveN(m, in, 2)
			if aerr != nil {
				return aerr
			}
			return execIMUL2(m, ops[0], ops[1])
		case 3:
			ops, aerr := resolveN(m, in, 3)
			if aerr != nil {
				return aerr
			}
			return execIMUL3(m, ops[0], ops[1], ops[2])
		default:
			return unhandledForm(in)
		}
	default:
		return unhandledForm(in)
	}
}

func mnemonicDiv(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execDIV(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

func mnemonicIdiv(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execIDIV(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

// mnemonicCmovcc serves the whole CMOVcc family: every member shares the
// one r<-rm form, and the condition predicate is keyed off the mnemonic
// inside execCMOVcc.
func mnemonicCmovcc(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 2)
		if aerr != nil {
			return aerr
		}
		return execCMOVcc(m, in.Mnemonic, ops[0], ops[1])
	default:
		return unhandledForm(in)
	}
}

// mnemonicSetcc serves the whole SETcc family the same way.
func mnemonicSetcc(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormLoadRM:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execSETcc(m, in.Mnemonic, ops[0])
	default:
		return unhandledForm(in)
	}
}

// mnemonicJcc serves JMP and every conditional near jump; the predicate
// is keyed off the mnemonic inside execJcc.
func mnemonicJcc(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormNearBranch:
		return execJcc(m, in)
	default:
		return unhandledForm(in)
	}
}

func mnemonicCall(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormNearBranch:
		return execCALL(m, in)
	default:
		return unhandledForm(in)
	}
}

func mnemonicRet(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormNone:
		return execRET(m)
	default:
		return unhandledForm(in)
	}
}

func mnemonicPush(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormStackOp:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execPUSH(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

func mnemonicPop(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormStackOp:
		ops, aerr := resolveN(m, in, 1)
		if aerr != nil {
			return aerr
		}
		return execPOP(m, ops[0])
	default:
		return unhandledForm(in)
	}
}

func mnemonicCpuid(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormNone:
		return execCPUID(m)
	default:
		return unhandledForm(in)
	}
}

func mnemonicCqo(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormNone:
		return execCQO(m)
	default:
		return unhandledForm(in)
	}
}

func mnemonicNop(m *Machine, in decode.Instruction) *axerr.Error {
	switch in.OpcodeForm {
	case decode.FormNone:
		return nil
	default:
		return unhandledForm(in)
	}
}
