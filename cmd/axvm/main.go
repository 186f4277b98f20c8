// Command axvm is the CLI driver over the emulator core: it feeds a flat
// binary's code bytes, initial RIP, and stack-top configuration into
// engine.NewMachine, drives Machine.Run to completion, and prints the
// final register state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oisee/axvm/pkg/cpu"
	"github.com/oisee/axvm/pkg/engine"
	"github.com/oisee/axvm/pkg/snapshot"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "axvm",
		Short: "axvm, an x86-64 user-mode instruction emulator",
	}

	rootCmd.AddCommand(newRunCmd(), newSnapshotCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		codeAddr  uint64
		rip       uint64
		stackTop  uint64
		stackSize uint64
		budget    int
		dumpRegs  bool
		randomize bool
		save      string
	)

	cmd := &cobra.Command{
		Use:   "run <flat-binary>",
		Short: "Load a flat binary and run it to normal finish or fault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			m, aerr := engine.NewMachine(engine.Config{
				Code:        code,
				CodeAddr:    codeAddr,
				RIP:         rip,
				StackTop:    stackTop,
				StackSize:   stackSize,
				Budget:      budget,
				RandomizeGP: randomize,
			})
			if aerr != nil {
				return fmt.Errorf("%s", aerr.Error())
			}

			runErr := m.Run(context.Background())

			if save != "" {
				if err := snapshot.Save(save, m); err != nil {
					return fmt.Errorf("writing snapshot %s: %w", save, err)
				}
			}

			fmt.Printf("executed %d instructions\n", m.Executed())
			if dumpRegs {
				dumpRegisters(m)
			}

			if runErr != nil {
				return fmt.Errorf("%s", runErr.Error())
			}
			fmt.Println("normal finish")
			return nil
		},
	}

	cmd.Flags().Uint64Var(&codeAddr, "code-addr", 0x401000, "address the code buffer is mapped at")
	cmd.Flags().Uint64Var(&rip, "rip", 0, "initial RIP (defaults to --code-addr)")
	cmd.Flags().Uint64Var(&stackTop, "stack-top", 0x8000, "top of the writable stack region")
	cmd.Flags().Uint64Var(&stackSize, "stack-size", 0x1000, "size in bytes of the stack region below --stack-top")
	cmd.Flags().IntVar(&budget, "budget", 1_000_000, "maximum instruction count (0 = unlimited)")
	cmd.Flags().BoolVar(&dumpRegs, "dump-regs", false, "print final GPR values as JSON")
	cmd.Flags().BoolVar(&randomize, "randomize", false, "seed non-RIP/RSP GPRs with random bits before execution")
	cmd.Flags().StringVar(&save, "save", "", "write a snapshot of final state to this path")

	return cmd
}

func newSnapshotCmd() *cobra.Command {
	var budget int

	cmd := &cobra.Command{
		Use:   "resume <snapshot-file>",
		Short: "Restore a saved snapshot and continue execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := snapshot.Load(args[0])
			if err != nil {
				return fmt.Errorf("loading snapshot %s: %w", args[0], err)
			}
			m := snapshot.Restore(st, budget)
			runErr := m.Run(context.Background())
			fmt.Printf("executed %d instructions\n", m.Executed())
			dumpRegisters(m)
			if runErr != nil {
				return fmt.Errorf("%s", runErr.Error())
			}
			fmt.Println("normal finish")
			return nil
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 1_000_000, "maximum instruction count (0 = unlimited)")
	return cmd
}

// dumpRegisters prints the canonical 64-bit GPRs and RFLAGS as JSON.
func dumpRegisters(m *engine.Machine) {
	regs := map[string]uint64{
		"rip": m.Regs.RIP(),
		"rax": m.Regs.Read64(cpu.RAX),
		"rbx": m.Regs.Read64(cpu.RBX),
		"rcx": m.Regs.Read64(cpu.RCX),
		"rdx": m.Regs.Read64(cpu.RDX),
		"rsi": m.Regs.Read64(cpu.RSI),
		"rdi": m.Regs.Read64(cpu.RDI),
		"rbp": m.Regs.Read64(cpu.RBP),
		"rsp": m.Regs.Read64(cpu.RSP),
		"r8":  m.Regs.Read64(cpu.R8),
		"r9":  m.Regs.Read64(cpu.R9),
		"r10": m.Regs.Read64(cpu.R10),
		"r11": m.Regs.Read64(cpu.R11),
		"r12": m.Regs.Read64(cpu.R12),
		"r13": m.Regs.Read64(cpu.R13),
		"r14": m.Regs.Read64(cpu.R14),
		"r15": m.Regs.Read64(cpu.R15),
	}
	out := struct {
		Registers map[string]uint64 `json:"registers"`
		RFlags    uint64            `json:"rflags"`
	}{Registers: regs, RFlags: uint64(m.RFlags)}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
