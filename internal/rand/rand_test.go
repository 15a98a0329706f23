package rand

import "testing"

func TestSeededSequenceRepeats(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		x, y := a.Float64(), b.Float64()
		if x != y {
			t.Fatalf("draw %d differs: %f vs %f", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("Float64 out of range: %f", x)
		}
	}
}

func TestIntnBounds(t *testing.T) {
	r := New(7)
	for i := 0; i < 1000; i++ {
		if v := r.Intn(3); v < 0 || v >= 3 {
			t.Fatalf("Intn(3) = %d", v)
		}
	}
	if v := r.Intn(0); v != 0 {
		t.Fatalf("Intn(0) = %d, want 0", v)
	}
}

func TestFixedWraps(t *testing.T) {
	f := &Fixed{Values: []float64{0.1, 0.9}}
	got := []float64{f.Float64(), f.Float64(), f.Float64()}
	want := []float64{0.1, 0.9, 0.1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("draw %d = %f, want %f", i, got[i], want[i])
		}
	}
	if v := (&Fixed{Values: []float64{0.99}}).Intn(3); v != 2 {
		t.Fatalf("Intn = %d, want 2", v)
	}
}
