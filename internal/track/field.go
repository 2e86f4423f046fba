package track

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Field supplies the longitudinal magnetic field component in kG.
type Field interface {
	Bz(pos r3.Vec) float64
}

// UniformField is a constant solenoidal field.
type UniformField float64

// Bz implements Field.
func (f UniformField) Bz(r3.Vec) float64 { return float64(f) }

// FieldMap is a cylindrically symmetric map of Bz on an (r, z) grid with
// bilinear interpolation. Points outside the grid use the nearest edge.
type FieldMap struct {
	R      []float64   `json:"r"`
	Z      []float64   `json:"z"`
	Values [][]float64 `json:"bz"` // Values[i][j] at (R[i], Z[j])
}

// Validate checks the grid is strictly increasing and fully populated.
func (m *FieldMap) Validate() error {
	if len(m.R) < 2 || len(m.Z) < 2 {
		return errors.New("field map needs at least two nodes per axis")
	}
	if !sort.Float64sAreSorted(m.R) || !sort.Float64sAreSorted(m.Z) {
		return errors.New("field map axes must be increasing")
	}
	if len(m.Values) != len(m.R) {
		return fmt.Errorf("field map has %d rows, want %d", len(m.Values), len(m.R))
	}
	for i, row := range m.Values {
		if len(row) != len(m.Z) {
			return fmt.Errorf("field map row %d has %d values, want %d", i, len(row), len(m.Z))
		}
	}
	return nil
}

// Bz implements Field.
func (m *FieldMap) Bz(pos r3.Vec) float64 {
	r := math.Hypot(pos.X, pos.Y)
	i, fr := locate(m.R, r)
	j, fz := locate(m.Z, pos.Z)
	v00 := m.Values[i][j]
	v01 := m.Values[i][j+1]
	v10 := m.Values[i+1][j]
	v11 := m.Values[i+1][j+1]
	return (1-fr)*((1-fz)*v00+fz*v01) + fr*((1-fz)*v10+fz*v11)
}

// Nominal returns the field at the origin.
func (m *FieldMap) Nominal() float64 { return m.Bz(r3.Vec{}) }

// locate returns the lower cell index and the clamped fractional position.
func locate(axis []float64, x float64) (int, float64) {
	n := len(axis)
	if x <= axis[0] {
		return 0, 0
	}
	if x >= axis[n-1] {
		return n - 2, 1
	}
	i := sort.SearchFloat64s(axis, x) - 1
	if i < 0 {
		i = 0
	}
	return i, (x - axis[i]) / (axis[i+1] - axis[i])
}
