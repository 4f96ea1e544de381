package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/nearlsh/vector"
)

// record is one line of a JSON lines data file. Exactly one of Vector and
// Sparse is set; a missing payload defaults to the line index.
type record struct {
	Payload string         `json:"payload"`
	Vector  []float64      `json:"vector,omitempty"`
	Sparse  *vector.Vector `json:"sparse,omitempty"`
}

type dataset struct {
	vectors  []vector.Vector
	payloads []string
}

func (d *dataset) dim() int { return d.vectors[0].Dim() }

// datasetFlags selects a data file or a random Gaussian data set.
type datasetFlags struct {
	path   string
	random int
	dim    int
	seed   uint64
}

func (f *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "data", "d", "", "JSON lines file of {\"payload\", \"vector\"} records, - for stdin")
	cmd.Flags().IntVar(&f.random, "random", 0, "Generate this many Gaussian vectors instead of reading --data")
	cmd.Flags().IntVar(&f.dim, "dim", 50, "Dimension of generated vectors")
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "Seed of generated vectors")
}

func (f *datasetFlags) load(stdin io.Reader) (*dataset, error) {
	switch {
	case f.path != "" && f.random > 0:
		return nil, errors.New("--data and --random are mutually exclusive")
	case f.random > 0:
		if f.dim <= 0 {
			return nil, fmt.Errorf("invalid --dim %d", f.dim)
		}
		return randomDataset(f.random, f.dim, f.seed), nil
	case f.path == "-":
		return readDataset(stdin)
	case f.path != "":
		file, err := os.Open(f.path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		ds, err := readDataset(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.path, err)
		}
		return ds, nil
	default:
		return nil, errors.New("one of --data or --random is required")
	}
}

func randomDataset(n, dim int, seed uint64) *dataset {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	ds := &dataset{
		vectors:  make([]vector.Vector, n),
		payloads: make([]string, n),
	}
	for i := range n {
		values := make([]float64, dim)
		for j := range values {
			values[j] = rng.NormFloat64()
		}
		ds.vectors[i] = vector.NewDense(values)
		ds.payloads[i] = strconv.Itoa(i)
	}
	return ds
}

func readDataset(r io.Reader) (*dataset, error) {
	ds := &dataset{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var v vector.Vector
		switch {
		case rec.Sparse != nil && rec.Vector != nil:
			return nil, fmt.Errorf("line %d: both vector and sparse set", line)
		case rec.Sparse != nil:
			v = *rec.Sparse
		case len(rec.Vector) > 0:
			v = vector.NewDense(rec.Vector)
		default:
			return nil, fmt.Errorf("line %d: no vector", line)
		}
		if len(ds.vectors) > 0 && v.Dim() != ds.dim() {
			return nil, fmt.Errorf("line %d: dimension %d, want %d", line, v.Dim(), ds.dim())
		}

		payload := rec.Payload
		if payload == "" {
			payload = strconv.Itoa(len(ds.vectors))
		}
		ds.vectors = append(ds.vectors, v)
		ds.payloads = append(ds.payloads, payload)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(ds.vectors) == 0 {
		return nil, errors.New("empty data set")
	}
	return ds, nil
}

// parseVector parses a comma separated dense vector.
func parseVector(s string) (vector.Vector, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return vector.Vector{}, fmt.Errorf("invalid vector component %d: %w", i, err)
		}
		values[i] = f
	}
	return vector.NewDense(values), nil
}
