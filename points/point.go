// Package points loads and stores the training data for a
// linear regression.
//
// A dataset is an ordered list of points sharing a single
// dimensionality. Two encodings are supported: a text
// format with one point per line, and the compact binary
// format written by Generate.
package points

import (
	"fmt"
	"os"
	"strings"
)

// Format names accepted by Load.
const (
	FormatText   = "text"
	FormatBinary = "binary"
)

// A Point is a single training example.
type Point struct {
	Coords []float64
	Target float64
}

// Dim returns the number of coordinates.
func (p Point) Dim() int {
	return len(p.Coords)
}

// A Dataset is an ordered, immutable list of points.
type Dataset struct {
	Points []Point
	Dim    int
}

// Len returns the number of points.
func (d *Dataset) Len() int {
	return len(d.Points)
}

// Add appends a point, checking its dimensionality against
// the points already in the dataset.
//
// The first point fixes the dimensionality.
func (d *Dataset) Add(p Point) error {
	if len(d.Points) == 0 {
		d.Dim = p.Dim()
	} else if p.Dim() != d.Dim {
		return fmt.Errorf("%w: expected %d coordinates but got %d", ErrDimensionMismatch,
			d.Dim, p.Dim())
	}
	d.Points = append(d.Points, p)
	return nil
}

// Load reads a dataset from a file in the given format.
//
// An empty format is treated as FormatBinary.
func Load(path, format string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(format) {
	case FormatText:
		return Read(f)
	case "", FormatBinary:
		return ReadBinary(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
