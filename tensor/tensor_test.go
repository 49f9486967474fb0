package tensor

import "testing"

func TestNewTensorShapeMismatch(t *testing.T) {
	_, err := NewTensor([]int{2, 3}, []float32{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for mismatched data length")
	}
}

func TestZerosAndClone(t *testing.T) {
	a := Zeros([]int{2, 2})
	if a.NumElements() != 4 {
		t.Fatalf("expected 4 elements, got %d", a.NumElements())
	}
	a.Set(1, 0, 3.5)
	b := a.Clone()
	b.Set(1, 0, -1)
	if a.At(1, 0) != 3.5 {
		t.Fatalf("clone aliased original: %f", a.At(1, 0))
	}
	if !a.SameShape(b) {
		t.Fatal("clone changed shape")
	}
}

func TestAddScaled(t *testing.T) {
	a, _ := NewTensor([]int{3}, []float32{1, 2, 3})
	b, _ := NewTensor([]int{3}, []float32{10, 20, 30})
	if err := a.AddScaled(b, 0.5); err != nil {
		t.Fatalf("AddScaled: %v", err)
	}
	want := []float32{6, 12, 18}
	for i, v := range a.Data {
		if v != want[i] {
			t.Fatalf("element %d: got %f want %f", i, v, want[i])
		}
	}
	c, _ := NewTensor([]int{2}, []float32{1, 2})
	if err := a.AddScaled(c, 1); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestFillScale(t *testing.T) {
	a := Zeros([]int{4})
	a.Fill(2)
	a.Scale(1.5)
	for i, v := range a.Data {
		if v != 3 {
			t.Fatalf("element %d: got %f want 3", i, v)
		}
	}
}
