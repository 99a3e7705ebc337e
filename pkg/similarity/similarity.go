// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package similarity implements the vector similarity measures used for
// reranking retrieved documents against a query embedding.
package similarity

import (
	"fmt"
	"math"
)

// Measure names accepted in the gateway config.
const (
	MeasureCosine = "cosine"
	MeasureDot    = "dot"
)

// Compute returns the similarity between x and y under the named measure.
// Vectors must have the same non-zero length.
func Compute(measure string, x, y []float32) (float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(x), len(y))
	}
	switch measure {
	case MeasureCosine:
		return Cosine(x, y)
	case MeasureDot:
		return Dot(x, y), nil
	}
	return 0, fmt.Errorf("invalid similarity measure %q", measure)
}

// Dot returns the dot product of x and y.
func Dot(x, y []float32) float64 {
	var sum float64
	for i := range x {
		sum += float64(x[i]) * float64(y[i])
	}
	return sum
}

// Cosine returns the cosine similarity of x and y. A zero vector has no
// direction, so it yields an error rather than a silent zero.
func Cosine(x, y []float32) (float64, error) {
	var dot, nx, ny float64
	for i := range x {
		fx, fy := float64(x[i]), float64(y[i])
		dot += fx * fy
		nx += fx * fx
		ny += fy * fy
	}
	if nx == 0 || ny == 0 {
		return 0, fmt.Errorf("cosine similarity undefined for zero vector")
	}
	return dot / (math.Sqrt(nx) * math.Sqrt(ny)), nil
}
