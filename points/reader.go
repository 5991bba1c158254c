package points

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/unixpickle/essentials"
)

// maxLineSize bounds the length of a single text record.
const maxLineSize = 16 << 20

// Read parses the text format: one point per line, with
// whitespace-separated numbers. The last number on a line
// is the target; the rest are coordinates.
func Read(r io.Reader) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	ds := &Dataset{}
	record := 0
	for scanner.Scan() {
		record++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			return nil, &ParseError{Record: record, Err: ErrEmptyRecord}
		}
		nums := make([]float64, len(fields))
		for i, field := range fields {
			x, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &ParseError{Record: record, Token: field, Err: ErrParse}
			}
			nums[i] = x
		}
		p := Point{Coords: nums[:len(nums)-1:len(nums)-1], Target: nums[len(nums)-1]}
		if err := ds.Add(p); err != nil {
			return nil, &ParseError{Record: record, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ReadBinary parses the binary format: a big-endian int32
// point count, a big-endian int32 dimensionality, and then
// for every point its coordinates followed by its target,
// each as a big-endian float64.
func ReadBinary(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)

	var header [2]int32
	if err := binary.Read(br, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrParse, err)
	}
	count, dim := int(header[0]), int(header[1])
	if count < 0 || dim < 0 {
		return nil, fmt.Errorf("%w: invalid header (count=%d, dim=%d)", ErrParse, count, dim)
	}

	// The header is untrusted, so only part of the space is
	// reserved up front.
	ds := &Dataset{Dim: dim, Points: make([]Point, 0, essentials.MinInt(count, 1<<16))}
	for i := 0; i < count; i++ {
		nums := make([]float64, dim+1)
		if err := binary.Read(br, binary.BigEndian, nums); err != nil {
			return nil, &ParseError{Record: i + 1, Err: fmt.Errorf("%w: %w", ErrParse, err)}
		}
		ds.Points = append(ds.Points, Point{Coords: nums[:dim:dim], Target: nums[dim]})
	}
	return ds, nil
}
