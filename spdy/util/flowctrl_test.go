package util

import "testing"

func TestWindowUseAndReturn(t *testing.T) {
	w := NewWindow(uint32(DefaultWindowSize))
	w.Use(1000)
	if w.Available() != DefaultWindowSize-1000 {
		t.Fatalf("available = %d", w.Available())
	}
	if err := w.Return(500); err != nil {
		t.Fatal(err)
	}
	if w.Available() != DefaultWindowSize-500 {
		t.Fatalf("available = %d", w.Available())
	}
}

func TestWindowCanGoNegative(t *testing.T) {
	w := NewWindow(100)
	w.Use(150)
	if w.Available() != -50 {
		t.Fatalf("available = %d, want -50", w.Available())
	}
}

func TestWindowReturnZeroDeltaInvalid(t *testing.T) {
	w := NewWindow(100)
	if err := w.Return(0); err != ErrInvalidDelta {
		t.Fatalf("err = %v, want ErrInvalidDelta", err)
	}
}

func TestWindowReturnOverflow(t *testing.T) {
	w := NewWindow(0)
	if err := w.Return(uint32(MaxWindowSize)); err != nil {
		t.Fatal(err)
	}
	if err := w.Return(1); err != ErrWindowOverflow {
		t.Fatalf("err = %v, want ErrWindowOverflow", err)
	}
}

func TestWindowReinitAppliesDeltaRetroactively(t *testing.T) {
	w := NewWindow(100)
	w.Use(30) // available = 70
	w.Reinit(200)
	if w.Available() != 170 {
		t.Fatalf("available = %d, want 170", w.Available())
	}
}
