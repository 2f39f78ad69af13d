// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyVector is returned when an embedding service returns no values.
	ErrEmptyVector = errors.New("embedding vector is empty")

	// ErrDimensionMismatch is returned when a vector has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// CheckDimensions verifies that v has exactly dims elements.
// A dims <= 0 only requires the vector to be non-empty.
func CheckDimensions(v []float32, dims int) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	if dims > 0 && len(v) != dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dims)
	}
	return nil
}
