// Package decode wraps golang.org/x/arch/x86/x86asm into the closed
// instruction contract the rest of the emulator talks to: a Mnemonic enum,
// a synthesized OpcodeForm discriminator, Operands already split into
// Register/Memory/Immediate descriptors, and near-branch targets resolved
// to an absolute BranchTarget.
//
// This is the only package that imports golang.org/x/arch/x86/x86asm;
// everything downstream depends on Instruction, not on x86asm's types,
// so the decoder stays swappable.
package decode

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/cpu"
)

// Mnemonic is the closed set of instruction mnemonics this emulator
// understands. Anything x86asm decodes outside this set is rejected by
// Decode itself with a fatal, unimplemented-mnemonic error.
type Mnemonic uint8

const (
	MnemonicInvalid Mnemonic = iota

	ADD
	SUB
	ADC
	SBB
	CMP
	NEG
	INC
	DEC
	NOT

	AND
	OR
	XOR
	TEST

	SHL
	SHR
	SAR
	ROL
	ROR

	MOV
	MOVZX
	MOVSX
	MOVSXD
	MOVD
	MOVUPS
	LEA

	MUL
	IMUL
	DIV
	IDIV

	CMOVA
	CMOVAE
	CMOVB
	CMOVBE
	CMOVE
	CMOVG
	CMOVGE
	CMOVL
	CMOVLE
	CMOVNE
	CMOVNO
	CMOVNP
	CMOVNS
	CMOVO
	CMOVP
	CMOVS

	SETA
	SETAE
	SETB
	SETBE
	SETE
	SETG
	SETGE
	SETL
	SETLE
	SETNE
	SETNO
	SETNP
	SETNS
	SETO
	SETP
	SETS

	JA
	JAE
	JB
	JBE
	JCXZ
	JE
	JECXZ
	JG
	JGE
	JL
	JLE
	JMP
	JNE
	JNO
	JNP
	JNS
	JO
	JP
	JRCXZ
	JS

	CALL
	RET

	PUSH
	POP

	CPUID
	CQO
	NOP
)

var mnemonicNames = map[Mnemonic]string{
	ADD: "ADD", SUB: "SUB", ADC: "ADC", SBB: "SBB", CMP: "CMP", NEG: "NEG",
	INC: "INC", DEC: "DEC", NOT: "NOT", AND: "AND", OR: "OR", XOR: "XOR",
	TEST: "TEST", SHL: "SHL", SHR: "SHR", SAR: "SAR", ROL: "ROL", ROR: "ROR",
	MOV: "MOV", MOVZX: "MOVZX", MOVSX: "MOVSX", MOVSXD: "MOVSXD", MOVD: "MOVD",
	MOVUPS: "MOVUPS", LEA: "LEA", MUL: "MUL", IMUL: "IMUL", DIV: "DIV", IDIV: "IDIV",
	CMOVA: "CMOVA", CMOVAE: "CMOVAE", CMOVB: "CMOVB", CMOVBE: "CMOVBE", CMOVE: "CMOVE",
	CMOVG: "CMOVG", CMOVGE: "CMOVGE", CMOVL: "CMOVL", CMOVLE: "CMOVLE", CMOVNE: "CMOVNE",
	CMOVNO: "CMOVNO", CMOVNP: "CMOVNP", CMOVNS: "CMOVNS", CMOVO: "CMOVO", CMOVP: "CMOVP",
	CMOVS: "CMOVS", SETA: "SETA", SETAE: "SETAE", SETB: "SETB", SETBE: "SETBE",
	SETE: "SETE", SETG: "SETG", SETGE: "SETGE", SETL: "SETL", SETLE: "SETLE",
	SETNE: "SETNE", SETNO: "SETNO", SETNP: "SETNP", SETNS: "SETNS", SETO: "SETO",
	SETP: "SETP", SETS: "SETS", JA: "JA", JAE: "JAE", JB: "JB", JBE: "JBE",
	JCXZ: "JCXZ", JE: "JE", JECXZ: "JECXZ", JG: "JG", JGE: "JGE", JL: "JL",
	JLE: "JLE", JMP: "JMP", JNE: "JNE", JNO: "JNO", JNP: "JNP", JNS: "JNS",
	JO: "JO", JP: "JP", JRCXZ: "JRCXZ", JS: "JS", CALL: "CALL", RET: "RET",
	PUSH: "PUSH", POP: "POP", CPUID: "CPUID", CQO: "CQO", NOP: "NOP",
}

func (m Mnemonic) String() string {
	if s, ok := mnemonicNames[m]; ok {
		return s
	}
	return "INVALID"
}

// opTable maps the x86asm opcodes this emulator supports onto Mnemonic.
// Everything not listed here decodes fine (x86asm itself understands it)
// but is rejected as an unimplemented mnemonic.
var opTable = map[x86asm.Op]Mnemonic{
	x86asm.ADD: ADD, x86asm.SUB: SUB, x86asm.ADC: ADC, x86asm.SBB: SBB,
	x86asm.CMP: CMP, x86asm.NEG: NEG, x86asm.INC: INC, x86asm.DEC: DEC, x86asm.NOT: NOT,
	x86asm.AND: AND, x86asm.OR: OR, x86asm.XOR: XOR, x86asm.TEST: TEST,
	x86asm.SHL: SHL, x86asm.SHR: SHR, x86asm.SAR: SAR, x86asm.ROL: ROL, x86asm.ROR: ROR,
	x86asm.MOV: MOV, x86asm.MOVZX: MOVZX, x86asm.MOVSX: MOVSX, x86asm.MOVSXD: MOVSXD,
	x86asm.MOVD: MOVD, x86asm.MOVUPS: MOVUPS, x86asm.LEA: LEA,
	x86asm.MUL: MUL, x86asm.IMUL: IMUL, x86asm.DIV: DIV, x86asm.IDIV: IDIV,
	x86asm.CMOVA: CMOVA, x86asm.CMOVAE: CMOVAE, x86asm.CMOVB: CMOVB, x86asm.CMOVBE: CMOVBE,
	x86asm.CMOVE: CMOVE, x86asm.CMOVG: CMOVG, x86asm.CMOVGE: CMOVGE, x86asm.CMOVL: CMOVL,
	x86asm.CMOVLE: CMOVLE, x86asm.CMOVNE: CMOVNE, x86asm.CMOVNO: CMOVNO, x86asm.CMOVNP: CMOVNP,
	x86asm.CMOVNS: CMOVNS, x86asm.CMOVO: CMOVO, x86asm.CMOVP: CMOVP, x86asm.CMOVS: CMOVS,
	x86asm.SETA: SETA, x86asm.SETAE: SETAE, x86asm.SETB: SETB, x86asm.SETBE: SETBE,
	x86asm.SETE: SETE, x86asm.SETG: SETG, x86asm.SETGE: SETGE, x86asm.SETL: SETL,
	x86asm.SETLE: SETLE, x86asm.SETNE: SETNE, x86asm.SETNO: SETNO, x86asm.SETNP: SETNP,
	x86asm.SETNS: SETNS, x86asm.SETO: SETO, x86asm.SETP: SETP, x86asm.SETS: SETS,
	x86asm.JA: JA, x86asm.JAE: JAE, x86asm.JB: JB, x86asm.JBE: JBE, x86asm.JCXZ: JCXZ,
	x86asm.JE: JE, x86asm.JECXZ: JECXZ, x86asm.JG: JG, x86asm.JGE: JGE, x86asm.JL: JL,
	x86asm.JLE: JLE, x86asm.JMP: JMP, x86asm.JNE: JNE, x86asm.JNO: JNO, x86asm.JNP: JNP,
	x86asm.JNS: JNS, x86asm.JO: JO, x86asm.JP: JP, x86asm.JRCXZ: JRCXZ, x86asm.JS: JS,
	x86asm.CALL: CALL, x86asm.RET: RET, x86asm.PUSH: PUSH, x86asm.POP: POP,
	x86asm.CPUID: CPUID, x86asm.CQO: CQO, x86asm.NOP: NOP,
}

// OpcodeForm is the per-instruction-shape discriminator dispatch switches
// on after routing by Mnemonic.
type OpcodeForm uint8

const (
	FormNone OpcodeForm = iota
	FormRM              // rm <- f(rm): INC, DEC, NOT, NEG, shifts by implicit 1/CL
	FormRMR             // rm <- f(rm, r): ADD r/m, r
	FormRRM             // r <- f(r, rm): ADD r, r/m
	FormRMImm           // rm <- f(rm, imm): ADD r/m, imm
	FormLoadRM          // r <- f(rm): LEA, MOVZX, MOVSX, MOVSXD, MOVD, MOVUPS, CMOVcc, SETcc
	FormNearBranch      // Jcc, CALL, JMP: a single absolute branch target
	FormStackOp         // PUSH/POP: a single r/m or imm operand sized by the opcode
)

var formNames = [...]string{
	FormNone:       "none",
	FormRM:         "rm",
	FormRMR:        "rm,r",
	FormRRM:        "r,rm",
	FormRMImm:      "rm,imm",
	FormLoadRM:     "r<-rm",
	FormNearBranch: "near-branch",
	FormStackOp:    "stack-op",
}

func (f OpcodeForm) String() string {
	if int(f) < len(formNames) {
		return formNames[f]
	}
	return "invalid"
}

// OperandKind is the tag of Operand's sum type.
type OperandKind uint8

const (
	KindNone OperandKind = iota
	KindRegister
	KindMemory
	KindImmediate
)

// MemOperand is an unresolved memory reference: Segment:[Base+Scale*Index+Disp].
type MemOperand struct {
	Segment cpu.Register // 0 if no override
	Base    cpu.Register // 0 if none
	Index   cpu.Register // 0 if none
	Scale   uint8
	Disp    int64
}

// Operand is one decoded instruction argument, in Intel operand order.
type Operand struct {
	Kind  OperandKind
	Width int // bits: 8, 16, 32, 64, or 128
	Reg   cpu.Register
	Mem   MemOperand
	Imm   int64
}

// Instruction is the decoder's oracle output: everything downstream of
// internal/decode needs to execute one machine instruction.
type Instruction struct {
	RIP        uint64 // address this instruction was fetched from
	Length     int
	Mnemonic   Mnemonic
	OpcodeForm OpcodeForm
	Operands   []Operand
	// BranchTarget is valid only when OpcodeForm == FormNearBranch: the
	// absolute destination address, already resolved from the decoder's
	// PC-relative encoding.
	BranchTarget uint64
}

// Decode decodes one instruction from the leading bytes of code, which
// must have been fetched starting at address rip in 64-bit mode.
func Decode(code []byte, rip uint64) (Instruction, *axerr.Error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return Instruction{}, axerr.Errorf("decode: at %#x: %v", rip, err)
	}

	mnem, ok := opTable[inst.Op]
	if !ok {
		return Instruction{}, axerr.Errorf("decode: unimplemented mnemonic %s at %#x", inst.Op, rip)
	}

	out := Instruction{
		RIP:      rip,
		Length:   inst.Len,
		Mnemonic: mnem,
	}

	switch mnem {
	case JA, JAE, JB, JBE, JCXZ, JE, JECXZ, JG, JGE, JL, JLE, JMP, JNE, JNO, JNP, JNS, JO, JP, JRCXZ, JS, CALL:
		out.OpcodeForm = FormNearBranch
		rel, aerr := relOperand(inst.Args[0])
		if aerr != nil {
			return Instruction{}, aerr
		}
		out.BranchTarget = rip + uint64(int64(inst.Len)) + uint64(int64(rel))
		return out, nil
	case RET, CPUID, CQO, NOP:
		out.OpcodeForm = FormNone
		return out, nil
	case PUSH, POP:
		out.OpcodeForm = FormStackOp
	case LEA, MOVZX, MOVSX, MOVSXD, MOVD, MOVUPS,
		CMOVA, CMOVAE, CMOVB, CMOVBE, CMOVE, CMOVG, CMOVGE, CMOVL, CMOVLE,
		CMOVNE, CMOVNO, CMOVNP, CMOVNS, CMOVO, CMOVP, CMOVS,
		SETA, SETAE, SETB, SETBE, SETE, SETG, SETGE, SETL, SETLE,
		SETNE, SETNO, SETNP, SETNS, SETO, SETP, SETS:
		out.OpcodeForm = FormLoadRM
	case INC, DEC, NOT, NEG, SHL, SHR, SAR, ROL, ROR, MUL, IMUL, DIV, IDIV:
		out.OpcodeForm = FormRM
	default:
		// ADD/SUB/ADC/SBB/CMP/AND/OR/XOR/TEST/MOV: shape depends on
		// whether the second argument is an immediate, a register, or
		// the destination is the register (r <- f(r, rm)) vs the
		// r/m (rm <- f(rm, r)). x86asm's argument order already
		// matches Intel dest, src; the first-arg kind tells us which.
		out.OpcodeForm = arithForm(inst)
	}

	operands, aerr := operandsOf(inst)
	if aerr != nil {
		return Instruction{}, aerr
	}
	out.Operands = operands
	return out, nil
}

func arithForm(inst x86asm.Inst) OpcodeForm {
	if len(inst.Args) >= 2 {
		if _, ok := inst.Args[1].(x86asm.Imm); ok {
			return FormRMImm
		}
	}
	if _, ok := inst.Args[0].(x86asm.Reg); ok {
		return FormRRM
	}
	return FormRMR
}

func relOperand(a x86asm.Arg) (x86asm.Rel, *axerr.Error) {
	rel, ok := a.(x86asm.Rel)
	if !ok {
		return 0, axerr.Errorf("decode: expected a near-branch operand, got %T", a)
	}
	return rel, nil
}

func operandsOf(inst x86asm.Inst) ([]Operand, *axerr.Error) {
	var out []Operand
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		op, aerr := operandOf(a, inst.DataSize)
		if aerr != nil {
			return nil, aerr
		}
		if op.Kind == KindMemory && inst.MemBytes != 0 {
			op.Width = inst.MemBytes * 8
		}
		out = append(out, op)
	}
	return out, nil
}

func operandOf(a x86asm.Arg, dataSize int) (Operand, *axerr.Error) {
	switch v := a.(type) {
	case x86asm.Reg:
		reg, width, aerr := regOf(v)
		if aerr != nil {
			return Operand{}, aerr
		}
		return Operand{Kind: KindRegister, Reg: reg, Width: width}, nil
	case x86asm.Imm:
		return Operand{Kind: KindImmediate, Imm: int64(v), Width: dataSize}, nil
	case x86asm.Mem:
		mem := MemOperand{Scale: v.Scale, Disp: v.Disp}
		if v.Segment != 0 {
			seg, _, aerr := regOf(v.Segment)
			if aerr != nil {
				return Operand{}, aerr
			}
			mem.Segment = seg
		}
		if v.Base != 0 {
			base, _, aerr := regOf(v.Base)
			if aerr != nil {
				return Operand{}, aerr
			}
			mem.Base = base
		}
		if v.Index != 0 {
			idx, _, aerr := regOf(v.Index)
			if aerr != nil {
				return Operand{}, aerr
			}
			mem.Index = idx
		}
		width := dataSize
		if width == 0 {
			width = 64
		}
		return Operand{Kind: KindMemory, Mem: mem, Width: width}, nil
	default:
		return Operand{}, axerr.Errorf("decode: unsupported operand type %T", a)
	}
}

// regOf maps an x86asm register to this emulator's cpu.Register and its
// width in bits. x86asm names its 32-bit extended registers R8L..R15L and
// its 8-bit extended registers R8B..R15B; this emulator names them R8D..
// R15D and R8L..R15L respectively (Intel's own naming). The two enums
// are unrelated types, so the rename only matters here, at the boundary.
func regOf(r x86asm.Reg) (cpu.Register, int, *axerr.Error) {
	switch r {
	case x86asm.AL:
		return cpu.AL, 8, nil
	case x86asm.CL:
		return cpu.CL, 8, nil
	case x86asm.DL:
		return cpu.DL, 8, nil
	case x86asm.BL:
		return cpu.BL, 8, nil
	case x86asm.AH:
		return cpu.AH, 8, nil
	case x86asm.CH:
		return cpu.CH, 8, nil
	case x86asm.DH:
		return cpu.DH, 8, nil
	case x86asm.BH:
		return cpu.BH, 8, nil
	case x86asm.SPB:
		return cpu.SPL, 8, nil
	case x86asm.BPB:
		return cpu.BPL, 8, nil
	case x86asm.SIB:
		return cpu.SIL, 8, nil
	case x86asm.DIB:
		return cpu.DIL, 8, nil
	case x86asm.R8B:
		return cpu.R8L, 8, nil
	case x86asm.R9B:
		return cpu.R9L, 8, nil
	case x86asm.R10B:
		return cpu.R10L, 8, nil
	case x86asm.R11B:
		return cpu.R11L, 8, nil
	case x86asm.R12B:
		return cpu.R12L, 8, nil
	case x86asm.R13B:
		return cpu.R13L, 8, nil
	case x86asm.R14B:
		return cpu.R14L, 8, nil
	case x86asm.R15B:
		return cpu.R15L, 8, nil

	case x86asm.AX:
		return cpu.AX, 16, nil
	case x86asm.CX:
		return cpu.CX, 16, nil
	case x86asm.DX:
		return cpu.DX, 16, nil
	case x86asm.BX:
		return cpu.BX, 16, nil
	case x86asm.SP:
		return cpu.SP, 16, nil
	case x86asm.BP:
		return cpu.BP, 16, nil
	case x86asm.SI:
		return cpu.SI, 16, nil
	case x86asm.DI:
		return cpu.DI, 16, nil
	case x86asm.R8W:
		return cpu.R8W, 16, nil
	case x86asm.R9W:
		return cpu.R9W, 16, nil
	case x86asm.R10W:
		return cpu.R10W, 16, nil
	case x86asm.R11W:
		return cpu.R11W, 16, nil
	case x86asm.R12W:
		return cpu.R12W, 16, nil
	case x86asm.R13W:
		return cpu.R13W, 16, nil
	case x86asm.R14W:
		return cpu.R14W, 16, nil
	case x86asm.R15W:
		return cpu.R15W, 16, nil

	case x86asm.EAX:
		return cpu.EAX, 32, nil
	case x86asm.ECX:
		return cpu.ECX, 32, nil
	case x86asm.EDX:
		return cpu.EDX, 32, nil
	case x86asm.EBX:
		return cpu.EBX, 32, nil
	case x86asm.ESP:
		return cpu.ESP, 32, nil
	case x86asm.EBP:
		return cpu.EBP, 32, nil
	case x86asm.ESI:
		return cpu.ESI, 32, nil
	case x86asm.EDI:
		return cpu.EDI, 32, nil
	case x86asm.R8L:
		return cpu.R8D, 32, nil
	case x86asm.R9L:
		return cpu.R9D, 32, nil
	case x86asm.R10L:
		return cpu.R10D, 32, nil
	case x86asm.R11L:
		return cpu.R11D, 32, nil
	case x86asm.R12L:
		return cpu.R12D, 32, nil
	case x86asm.R13L:
		return cpu.R13D, 32, nil
	case x86asm.R14L:
		return cpu.R14D, 32, nil
	case x86asm.R15L:
		return cpu.R15D, 32, nil

	case x86asm.RAX:
		return cpu.RAX, 64, nil
	case x86asm.RCX:
		return cpu.RCX, 64, nil
	case x86asm.RDX:
		return cpu.RDX, 64, nil
	case x86asm.RBX:
		return cpu.RBX, 64, nil
	case x86asm.RSP:
		return cpu.RSP, 64, nil
	case x86asm.RBP:
		return cpu.RBP, 64, nil
	case x86asm.RSI:
		return cpu.RSI, 64, nil
	case x86asm.RDI:
		return cpu.RDI, 64, nil
	case x86asm.R8:
		return cpu.R8, 64, nil
	case x86asm.R9:
		return cpu.R9, 64, nil
	case x86asm.R10:
		return cpu.R10, 64, nil
	case x86asm.R11:
		return cpu.R11, 64, nil
	case x86asm.R12:
		return cpu.R12, 64, nil
	case x86asm.R13:
		return cpu.R13, 64, nil
	case x86asm.R14:
		return cpu.R14, 64, nil
	case x86asm.R15:
		return cpu.R15, 64, nil
	case x86asm.RIP:
		return cpu.RIP, 64, nil

	case x86asm.X0:
		return cpu.XMM0, 128, nil
	case x86asm.X1:
		return cpu.XMM1, 128, nil
	case x86asm.X2:
		return cpu.XMM2, 128, nil
	case x86asm.X3:
		return cpu.XMM3, 128, nil
	case x86asm.X4:
		return cpu.XMM4, 128, nil
	case x86asm.X5:
		return cpu.XMM5, 128, nil
	case x86asm.X6:
		return cpu.XMM6, 128, nil
	case x86asm.X7:
		return cpu.XMM7, 128, nil
	case x86asm.X8:
		return cpu.XMM8, 128, nil
	case x86asm.X9:
		return cpu.XMM9, 128, nil
	case x86asm.X10:
		return cpu.XMM10, 128, nil
	case x86asm.X11:
		return cpu.XMM11, 128, nil
	case x86asm.X12:
		return cpu.XMM12, 128, nil
	case x86asm.X13:
		return cpu.XMM13, 128, nil
	case x86asm.X14:
		return cpu.XMM14, 128, nil
	case x86asm.X15:
		return cpu.XMM15, 128, nil

	case x86asm.FS:
		return cpu.FS, 64, nil
	case x86asm.GS:
		return cpu.GS, 64, nil
	case x86asm.CS:
		return cpu.CS, 16, nil
	case x86asm.SS:
		return cpu.SS, 16, nil
	case x86asm.DS:
		return cpu.DS, 16, nil
	case x86asm.ES:
		return cpu.ES, 16, nil

	default:
		return 0, 0, axerr.Errorf("decode: unsupported register class %v", r)
	}
}
