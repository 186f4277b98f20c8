package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/flags"
	"github.com/oisee/axvm/pkg/operand"
)

// execADD implements ADD rm, r/imm / r, rm: full flag recomputation,
// writeback always happens.
func execADD(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return dispatchBinary(m, dst, src, arithFlags, 0, true, dst.Width,
		addOp[uint8], addOp[uint16], addOp[uint32], addOp[uint64])
}

func execSUB(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return dispatchBinary(m, dst, src, arithFlags, 0, true, dst.Width,
		subOp[uint8], subOp[uint16], subOp[uint32], subOp[uint64])
}

// execCMP is SUB without the writeback: destination is left untouched,
// only flags are updated.
func execCMP(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return dispatchBinary(m, dst, src, arithFlags, 0, false, dst.Width,
		subOp[uint8], subOp[uint16], subOp[uint32], subOp[uint64])
}

func execADC(m *Machine, dst, src operand.Resolved) *axerr.Error {
	carryIn := m.RFlags&flags.CF != 0
	switch dst.Width {
	case 8:
		return calcBinary(m, dst, src, arithFlags, 0, true, adcOp[uint8](carryIn))
	case 16:
		return calcBinary(m, dst, src, arithFlags, 0, true, adcOp[uint16](carryIn))
	case 32:
		return calcBinary(m, dst, src, arithFlags, 0, true, adcOp[uint32](carryIn))
	default:
		return calcBinary(m, dst, src, arithFlags, 0, true, adcOp[uint64](carryIn))
	}
}

func execSBB(m *Machine, dst, src operand.Resolved) *axerr.Error {
	carryIn := m.RFlags&flags.CF != 0
	switch dst.Width {
	case 8:
		return calcBinary(m, dst, src, arithFlags, 0, true, sbbOp[uint8](carryIn))
	case 16:
		return calcBinary(m, dst, src, arithFlags, 0, true, sbbOp[uint16](carryIn))
	case 32:
		return calcBinary(m, dst, src, arithFlags, 0, true, sbbOp[uint32](carryIn))
	default:
		return calcBinary(m, dst, src, arithFlags, 0, true, sbbOp[uint64](carryIn))
	}
}

func execNEG(m *Machine, rm operand.Resolved) *axerr.Error {
	return dispatchUnary(m, rm, arithFlags, 0, rm.Width,
		negOp[uint8], negOp[uint16], negOp[uint32], negOp[uint64])
}

// execNOT flips every bit and never touches RFLAGS.
func execNOT(m *Machine, rm operand.Resolved) *axerr.Error {
	return dispatchUnary(m, rm, flags.Unaffected, 0, rm.Width,
		notOp[uint8], notOp[uint16], notOp[uint32], notOp[uint64])
}

// execINC and execDEC leave CF untouched, unlike every other arithmetic op.
func execINC(m *Machine, rm operand.Resolved) *axerr.Error {
	return dispatchUnary(m, rm, incDecFlags, 0, rm.Width,
		incOp[uint8], incOp[uint16], incOp[uint32], incOp[uint64])
}

func execDEC(m *Machine, rm operand.Resolved) *axerr.Error {
	return dispatchUnary(m, rm, incDecFlags, 0, rm.Width,
		decOp[uint8], decOp[uint16], decOp[uint32], decOp[uint64])
}
