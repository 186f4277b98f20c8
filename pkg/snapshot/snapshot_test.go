package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/engine"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	code := []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3} // mov eax,42 ; ret
	m, aerr := engine.NewMachine(engine.Config{
		Code:      code,
		CodeAddr:  0x401000,
		RIP:       0x401000,
		StackTop:  0x8000,
		StackSize: 16,
		Budget:    10,
	})
	if aerr != nil {
		t.Fatalf("NewMachine: %s", aerr.Error())
	}
	m.Regs.Write64(cpu.RBX, 0x99887766)

	path := filepath.Join(t.TempDir(), "snap.gob")
	if err := Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	restored := Restore(st, 10)

	if got := restored.Regs.Read64(cpu.RBX); got != 0x99887766 {
		t.Errorf("RBX after restore = %#x, want 0x99887766", got)
	}
	if got := restored.Regs.RIP(); got != m.Regs.RIP() {
		t.Errorf("RIP after restore = %#x, want %#x", got, m.Regs.RIP())
	}
	if got := restored.StackTop; got != m.StackTop {
		t.Errorf("StackTop after restore = %#x, want %#x", got, m.StackTop)
	}

	if aerr := restored.Run(context.Background()); aerr != nil {
		t.Fatalf("Run after restore: %s", aerr.Error())
	}
	if got := restored.Regs.Read64(cpu.RAX); got != 0x2A {
		t.Errorf("RAX after resumed run = %#x, want 0x2A", got)
	}

	_ = os.Remove(path)
}
