package points

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// WriteText encodes a dataset in the text format.
func WriteText(w io.Writer, ds *Dataset) error {
	bw := bufio.NewWriter(w)
	for _, p := range ds.Points {
		if _, err := io.WriteString(bw, formatFloats(append(append([]float64{}, p.Coords...),
			p.Target))); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteBinary encodes a dataset in the binary format read
// by ReadBinary.
func WriteBinary(w io.Writer, ds *Dataset) error {
	if ds.Len() > math.MaxInt32 || ds.Dim > math.MaxInt32 {
		return fmt.Errorf("points: dataset too large for binary format")
	}
	bw := bufio.NewWriter(w)
	header := [2]int32{int32(ds.Len()), int32(ds.Dim)}
	if err := binary.Write(bw, binary.BigEndian, header); err != nil {
		return err
	}
	for _, p := range ds.Points {
		if err := binary.Write(bw, binary.BigEndian, p.Coords); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.BigEndian, p.Target); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteWeights writes a weight vector as a single line of
// space-separated numbers.
func WriteWeights(w io.Writer, weights []float64) error {
	_, err := fmt.Fprintln(w, formatFloats(weights))
	return err
}

// ReadWeights parses the first line written by
// WriteWeights.
func ReadWeights(r io.Reader) ([]float64, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmptyRecord
	}
	res := make([]float64, len(fields))
	for i, field := range fields {
		res[i], err = strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, &ParseError{Record: 1, Token: field, Err: ErrParse}
		}
	}
	return res, nil
}

// A FileSink writes final weights to a file, replacing any
// previous contents.
type FileSink struct {
	Path string
}

// WriteWeights writes the weights to the file.
func (f *FileSink) WriteWeights(weights []float64) (err error) {
	file, err := os.Create(f.Path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	return WriteWeights(file, weights)
}

func formatFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
