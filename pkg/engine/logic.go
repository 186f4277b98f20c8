package engine

import (
	"github.com/oisee/axvm/internal/axerr"
	"github.com/oisee/axvm/pkg/operand"
)

// execAND, execOR, execXOR clear CF/OF, set PF/ZF/SF from the result, and
// leave AF unchanged (hardware leaves it undefined).
func execAND(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return dispatchBinary(m, dst, src, logicFlags, 0, true, dst.Width,
		andOp[uint8], andOp[uint16], andOp[uint32], andOp[uint64])
}

func execOR(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return dispatchBinary(m, dst, src, logicFlags, 0, true, dst.Width,
		orOp[uint8], orOp[uint16], orOp[uint32], orOp[uint64])
}

func execXOR(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return dispatchBinary(m, dst, src, logicFlags, 0, true, dst.Width,
		xorOp[uint8], xorOp[uint16], xorOp[uint32], xorOp[uint64])
}

// execTEST is AND without the writeback.
func execTEST(m *Machine, dst, src operand.Resolved) *axerr.Error {
	return dispatchBinary(m, dst, src, logicFlags, 0, false, dst.Width,
		andOp[uint8], andOp[uint16], andOp[uint32], andOp[uint64])
}
