package simrand

import (
	"io"
	"testing"
)

func TestNewIsReproducible(t *testing.T) {
	a, b := New(99), New(99)
	for i := range 20 {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
}

func TestNewReaderIsReproducible(t *testing.T) {
	x := make([]byte, 32)
	y := make([]byte, 32)
	if _, err := io.ReadFull(NewReader(5), x); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := io.ReadFull(NewReader(5), y); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(x) != string(y) {
		t.Fatalf("streams differ for the same seed")
	}
}

func TestIntRange(t *testing.T) {
	r := New(1)
	for range 500 {
		v := IntRange(r, 10, 99)
		if v < 10 || v > 99 {
			t.Fatalf("IntRange = %d, want [10,99]", v)
		}
	}
	if got := IntRange(r, 4, 4); got != 4 {
		t.Fatalf("IntRange(4,4) = %d", got)
	}
	if got := IntRange(r, 7, 3); got != 7 {
		t.Fatalf("IntRange(7,3) = %d, want lo", got)
	}
}

func TestScripted(t *testing.T) {
	s := &Scripted{Floats: []float64{0.1}, Ints: []int{7, -3}, FloatDefault: 0.9}

	if !Chance(s, 0.2) {
		t.Fatalf("Chance(0.1 < 0.2) = false")
	}
	if Chance(s, 0.2) {
		t.Fatalf("Chance(default 0.9 < 0.2) = true")
	}
	if got := s.IntN(5); got != 2 {
		t.Fatalf("IntN = %d, want 7 mod 5", got)
	}
	if got := s.IntN(5); got != 3 {
		t.Fatalf("IntN = %d, want |-3| mod 5", got)
	}
	if got := s.IntN(5); got != 0 {
		t.Fatalf("exhausted IntN = %d, want 0", got)
	}
}
