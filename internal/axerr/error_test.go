package axerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRenderingOrder(t *testing.T) {
	e := New("something broke").WithDetail("at rip 0x401000", "0x401005", "trace line", "rsp: 0x8000")
	s := e.Error()

	for _, want := range []string{"at rip 0x401000", "something broke", "Call stack", "0x401005", "rsp: 0x8000", "Trace", "trace line"} {
		if !strings.Contains(s, want) {
			t.Errorf("rendering missing %q:\n%s", want, s)
		}
	}
	if strings.Index(s, "at rip 0x401000") > strings.Index(s, "something broke") {
		t.Error("detail should render before message")
	}
}

// TestWithDetailPreservesExistingFields verifies a later WithDetail with
// empty arguments keeps the values a previous call set.
func TestWithDetailPreservesExistingFields(t *testing.T) {
	e := New("msg").WithDetail("first detail", "", "", "")
	e2 := e.WithDetail("", "call stack here", "", "")

	s := e2.Error()
	if !strings.Contains(s, "first detail") {
		t.Error("detail set earlier was lost by a later empty-detail WithDetail")
	}
	if !strings.Contains(s, "call stack here") {
		t.Error("call stack from the later WithDetail missing")
	}
}

// TestWithDetailReplacesWithNonEmpty verifies a non-empty argument wins
// over a previously set field.
func TestWithDetailReplacesWithNonEmpty(t *testing.T) {
	e := New("msg").WithDetail("old", "", "", "").WithDetail("new", "", "", "")
	s := e.Error()
	if strings.Contains(s, "old") {
		t.Error("old detail should have been replaced")
	}
	if !strings.Contains(s, "new") {
		t.Error("new detail missing")
	}
}

// TestWithDetailDoesNotMutateReceiver verifies WithDetail copies rather
// than mutating, so a shared base error stays clean.
func TestWithDetailDoesNotMutateReceiver(t *testing.T) {
	base := New("base")
	_ = base.WithDetail("extra", "", "", "")
	if strings.Contains(base.Error(), "extra") {
		t.Error("WithDetail mutated its receiver")
	}
}

func TestEndExecutionMarksNormalFinish(t *testing.T) {
	e := New("done")
	if e.NormalFinish() {
		t.Error("fresh error must not signal normal finish")
	}
	fin := e.EndExecution()
	if !fin.NormalFinish() {
		t.Error("EndExecution result must signal normal finish")
	}
	if e.NormalFinish() {
		t.Error("EndExecution must not mutate the original")
	}
}

func TestNormalFinishOnNil(t *testing.T) {
	var e *Error
	if e.NormalFinish() {
		t.Error("nil error must not signal normal finish")
	}
}

// TestWrapExposesCause verifies the host-bridge channel: a wrapped cause
// participates in errors.Is and appears in the rendering.
func TestWrapExposesCause(t *testing.T) {
	cause := errors.New("host side exploded")
	e := Wrap(cause, "emulator context")

	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !strings.Contains(e.Error(), "host side exploded") {
		t.Error("rendering should include the wrapped cause")
	}
}

// TestErrorfFormats verifies Errorf behaves like fmt.Sprintf.
func TestErrorfFormats(t *testing.T) {
	e := Errorf("at %#x: %s", 0x401000, "bad byte")
	want := fmt.Sprintf("at %#x: %s", 0x401000, "bad byte")
	if !strings.Contains(e.Error(), want) {
		t.Errorf("Errorf rendering %q missing %q", e.Error(), want)
	}
}

// TestEmptyErrorPanics verifies an all-empty error is treated as a
// programming bug at render time.
func TestEmptyErrorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic rendering an empty error")
		}
	}()
	_ = (&Error{}).Error()
}
