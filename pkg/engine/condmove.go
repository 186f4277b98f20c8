package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/internal/decode"
	"github.com/oisee/axvm/pkg/flags"
	"github.com/oisee/axvm/pkg/operand"
)

// condTrue evaluates the CMOVcc/SETcc condition named by mnem. The
// predicate table is the same one execJcc uses for Jcc, just reindexed
// onto the CMOV/SET mnemonic constants.
func condTrue(m *Machine, mnem decode.Mnemonic) (bool, *axerr.Error) {
	f := m.RFlags
	cf := f&flags.CF != 0
	zf := f&flags.ZF != 0
	sf := f&flags.SF != 0
	of := f&flags.OF != 0
	pf := f&flags.PF != 0
	switch mnem {
	case decode.CMOVA, decode.SETA:
		return !cf && !zf, nil
	case decode.CMOVAE, decode.SETAE:
		return !cf, nil
	case decode.CMOVB, decode.SETB:
		return cf, nil
	case decode.CMOVBE, decode.SETBE:
		return cf || zf, nil
	case decode.CMOVE, decode.SETE:
		return zf, nil
	case decode.CMOVG, decode.SETG:
		return !zf && sf == of, nil
	case decode.CMOVGE, decode.SETGE:
		return sf == of, nil
	case decode.CMOVL, decode.SETL:
		return sf != of, nil
	case decode.CMOVLE, decode.SETLE:
		return zf || sf != of, nil
	case decode.CMOVNE, decode.SETNE:
		return !zf, nil
	case decode.CMOVNO, decode.SETNO:
		return !of, nil
	case decode.CMOVNP, decode.SETNP:
		return !pf, nil
	case decode.CMOVNS, decode.SETNS:
		return !sf, nil
	case decode.CMOVO, decode.SETO:
		return of, nil
	case decode.CMOVP, decode.SETP:
		return pf, nil
	case decode.CMOVS, decode.SETS:
		return sf, nil
	default:
		return false, axerr.Errorf("engine: unimplemented condition %s", mnem)
	}
}

// execCMOVcc copies src into dst only if the condition holds. Flags are
// never touched, taken or not.
func execCMOVcc(m *Machine, mnem decode.Mnemonic, dst, src operand.Resolved) *axerr.Error {
	taken, aerr := condTrue(m, mnem)
	if aerr != nil {
		return aerr
	}
	if !taken {
		return nil
	}
	switch dst.Width {
	case 16:
		return loadRM(m, dst, src, func(v uint16) uint16 { return v })
	case 32:
		return loadRM(m, dst, src, func(v uint32) uint32 { return v })
	default:
		return loadRM(m, dst, src, func(v uint64) uint64 { return v })
	}
}

// execSETcc writes 1 or 0 to an 8-bit destination depending on mnem's
// condition. Flags are never touched.
func execSETcc(m *Machine, mnem decode.Mnemonic, dst operand.Resolved) *axerr.Error {
	taken, aerr := condTrue(m, mnem)
	if aerr != nil {
		return aerr
	}
	var v uint8
	if taken {
		v = 1
	}
	return writeOperandT(m, dst, v)
}
