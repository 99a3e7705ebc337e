// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package similarity

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	t.Run("identical direction scores 1", func(t *testing.T) {
		got, err := Cosine([]float32{1, 2, 3}, []float32{2, 4, 6})
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-1.0) > 1e-9 {
			t.Errorf("got %f, want 1.0", got)
		}
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		got, err := Cosine([]float32{1, 0}, []float32{0, 1})
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got) > 1e-9 {
			t.Errorf("got %f, want 0", got)
		}
	})

	t.Run("zero vector is an error", func(t *testing.T) {
		if _, err := Cosine([]float32{0, 0}, []float32{1, 1}); err == nil {
			t.Error("expected an error for a zero vector")
		}
	})
}

func TestDot(t *testing.T) {
	if got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Errorf("got %f, want 32", got)
	}
}

func TestCompute(t *testing.T) {
	t.Run("dispatches by measure name", func(t *testing.T) {
		got, err := Compute(MeasureDot, []float32{1, 1}, []float32{2, 3})
		if err != nil || got != 5 {
			t.Errorf("dot: got %f (%v)", got, err)
		}
		if _, err := Compute(MeasureCosine, []float32{1, 0}, []float32{1, 0}); err != nil {
			t.Errorf("cosine: %v", err)
		}
	})

	t.Run("length mismatch is an error", func(t *testing.T) {
		if _, err := Compute(MeasureDot, []float32{1}, []float32{1, 2}); err == nil {
			t.Error("expected a length mismatch error")
		}
	})

	t.Run("unknown measure is an error", func(t *testing.T) {
		if _, err := Compute("euclidean", []float32{1}, []float32{1}); err == nil {
			t.Error("expected an invalid measure error")
		}
	})
}
