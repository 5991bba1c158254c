package points

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	ds, err := Read(strings.NewReader("1 2 3\n  4\t5   6 \n-1e2 0.5 7\n"))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Dim)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, Point{Coords: []float64{4, 5}, Target: 6}, ds.Points[1])
	assert.Equal(t, Point{Coords: []float64{-100, 0.5}, Target: 7}, ds.Points[2])
}

func TestReadTargetOnly(t *testing.T) {
	ds, err := Read(strings.NewReader("3\n4\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Dim)
	assert.Equal(t, 2, ds.Len())
}

func TestReadErrors(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		target error
		record int
	}{
		{"Malformed", "1 2\n3 x\n", ErrParse, 2},
		{"Empty", "1 2\n\n3 4\n", ErrEmptyRecord, 2},
		{"Blank", "   \n", ErrEmptyRecord, 1},
		{"Dimensionality", "1 2 3\n1 2\n", ErrDimensionMismatch, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(c.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.target), "unexpected error: %v", err)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, c.record, parseErr.Record)
		})
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ds := Generate(rng, 100, RandomWeights(rng, 3, 10), 50)

	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, ds))
	require.Equal(t, 8+100*4*8, buf.Len())

	decoded, err := ReadBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds, decoded)
}

func TestReadBinaryTruncated(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	ds := Generate(rng, 4, []float64{1, 2, 3}, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, ds))

	_, err := ReadBinary(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestGenerateOnHyperplane(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	weights := []float64{3, -2, 5}
	ds := Generate(rng, 1000, weights, 100)
	require.Equal(t, 2, ds.Dim)
	for _, p := range ds.Points {
		for _, c := range p.Coords {
			require.True(t, c >= -100 && c < 100)
		}
		assert.InDelta(t, 3*p.Coords[0]-2*p.Coords[1]+5, p.Target, 1e-9)
	}
}

func TestRandomDim(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		dim := RandomDim(rng)
		require.True(t, dim >= 1 && dim < MaxRandomDim, "dim=%d", dim)
		seen[dim] = true
	}
	assert.Len(t, seen, MaxRandomDim-1)
}

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")

	ds := &Dataset{}
	require.NoError(t, ds.Add(Point{Coords: []float64{1}, Target: 4}))
	require.NoError(t, ds.Add(Point{Coords: []float64{2.5}, Target: 6}))
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, ds))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	loaded, err := Load(path, FormatText)
	require.NoError(t, err)
	assert.Equal(t, ds, loaded)

	_, err = Load(path, "csv")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoadDefaultsToBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.bin")
	rng := rand.New(rand.NewSource(4))
	ds := Generate(rng, 10, []float64{1, 2}, 5)
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, ds))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	loaded, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, ds, loaded)

	loaded, err = Load(path, "BINARY")
	require.NoError(t, err)
	assert.Equal(t, ds, loaded)
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.txt")
	sink := &FileSink{Path: path}
	weights := []float64{2, -0.125, 1e-20}
	require.NoError(t, sink.WriteWeights(weights))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	read, err := ReadWeights(f)
	require.NoError(t, err)
	assert.Equal(t, weights, read)

	bad := &FileSink{Path: filepath.Join(path, "not-a-dir", "weights.txt")}
	assert.Error(t, bad.WriteWeights(weights))
}
