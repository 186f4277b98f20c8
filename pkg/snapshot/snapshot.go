// Package snapshot persists and restores a Machine's architectural state
// to a file: registers, XMM bank, segment bases, RFLAGS, memory regions,
// and the configured stack top. The gob encoding is an internal format,
// not a stable contract.
package snapshot

import (
	"encoding/gob"
	"os"

	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/engine"
	"github.com/oisee/axvm/pkg/flags"
	"github.com/oisee/axvm/pkg/memory"
)

func init() {
	gob.Register(memory.Region{})
}

// State is the gob-encodable snapshot of one Machine, minus the
// non-persisted bookkeeping (instruction budget, call stack, executed
// count) that only matters within a single run.
type State struct {
	Registers cpu.Snapshot
	RFlags    flags.Flags
	Regions   []memory.Region
	StackTop  uint64
}

// Capture builds a State from a live Machine.
func Capture(m *engine.Machine) State {
	regions := m.Mem.Regions()
	out := make([]memory.Region, len(regions))
	for i, r := range regions {
		out[i] = *r
	}
	return State{
		Registers: m.Regs.Snapshot(),
		RFlags:    m.RFlags,
		Regions:   out,
		StackTop:  m.StackTop,
	}
}

// Save writes a Machine's current state to path as a gob-encoded State.
func Save(path string, m *engine.Machine) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(Capture(m))
}

// Load reads a gob-encoded State back from path.
func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var st State
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Restore builds a fresh Machine from a previously captured State, with
// the given instruction budget (budgets are a per-run concern and are not
// part of the persisted state).
func Restore(st *State, budget int) *engine.Machine {
	regions := make([]*memory.Region, len(st.Regions))
	for i := range st.Regions {
		r := st.Regions[i]
		regions[i] = &r
	}
	m := &engine.Machine{
		Mem:      memory.NewSpaceFromRegions(regions),
		RFlags:   st.RFlags,
		StackTop: st.StackTop,
		Budget:   budget,
	}
	m.Regs.Restore(st.Registers)
	return m
}
