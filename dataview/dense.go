package dataview

import "github.com/MycelicMemory/irm/models"

// strides returns row-major strides for shape, matching the original
// source's row_major_dense_dataview layout.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func unravel(flat int, shape, strd []int) []int64 {
	coord := make([]int64, len(shape))
	for i := range shape {
		coord[i] = int64(flat / strd[i])
		flat %= strd[i]
	}
	return coord
}

// DenseBool is a dense, row-major, boolean-valued dataview with an optional
// mask. A nil mask means no cell is masked.
type DenseBool struct {
	shape   []int
	strides []int
	values  []bool
	masked  []bool
}

// NewDenseBool constructs a dense boolean dataview. values and masked (if
// non-nil) must have length equal to the product of shape.
func NewDenseBool(shape []int, values, masked []bool) *DenseBool {
	return &DenseBool{shape: shape, strides: strides(shape), values: values, masked: masked}
}

func (d *DenseBool) Dims() int    { return len(d.shape) }
func (d *DenseBool) Shape() []int { return d.shape }

func (d *DenseBool) Slice(position int, coordAtPosition int64) Iterator {
	return &denseBoolIterator{d: d, position: position, target: coordAtPosition}
}

type denseBoolIterator struct {
	d        *DenseBool
	position int
	target   int64
	flat     int
}

func (it *denseBoolIterator) Next() ([]int64, models.Value, bool) {
	shape, strd := it.d.shape, it.d.strides
	total := len(it.d.values)
	for it.flat < total {
		flat := it.flat
		it.flat++
		if int64(flat/strd[it.position]%shape[it.position]) != it.target {
			continue
		}
		if it.d.masked != nil && it.d.masked[flat] {
			continue
		}
		coord := unravel(flat, shape, strd)
		return coord, models.BoolValue{V: it.d.values[flat]}, true
	}
	return nil, nil, false
}

// DenseFloat64 is a dense, row-major, real-valued dataview with an optional
// mask.
type DenseFloat64 struct {
	shape   []int
	strides []int
	values  []float64
	masked  []bool
}

func NewDenseFloat64(shape []int, values []float64, masked []bool) *DenseFloat64 {
	return &DenseFloat64{shape: shape, strides: strides(shape), values: values, masked: masked}
}

func (d *DenseFloat64) Dims() int    { return len(d.shape) }
func (d *DenseFloat64) Shape() []int { return d.shape }

func (d *DenseFloat64) Slice(position int, coordAtPosition int64) Iterator {
	return &denseFloat64Iterator{d: d, position: position, target: coordAtPosition}
}

type denseFloat64Iterator struct {
	d        *DenseFloat64
	position int
	target   int64
	flat     int
}

func (it *denseFloat64Iterator) Next() ([]int64, models.Value, bool) {
	shape, strd := it.d.shape, it.d.strides
	total := len(it.d.values)
	for it.flat < total {
		flat := it.flat
		it.flat++
		if int64(flat/strd[it.position]%shape[it.position]) != it.target {
			continue
		}
		if it.d.masked != nil && it.d.masked[flat] {
			continue
		}
		coord := unravel(flat, shape, strd)
		return coord, models.Float64Value{V: it.d.values[flat]}, true
	}
	return nil, nil, false
}
