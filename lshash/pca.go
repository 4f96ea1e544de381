package lshash

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/nearlsh/vector"
)

// pcaCore holds the principal components shared by the PCA hashes.
// The components are trained once; the hash is locked to the training
// dimension and cannot be retrained by Reset.
type pcaCore struct {
	name string
	proj *projection
	mu   sync.Mutex
}

func (c *pcaCore) init(name string, k int, training []vector.Vector) error {
	if k <= 0 {
		return fmt.Errorf("%w: hash %q: projection count must be positive, got %d", ErrConfiguration, name, k)
	}
	c.name = name
	c.proj = newProjection(k)
	if len(training) == 0 {
		// Untrained; parameters must come from ApplyConfig.
		return nil
	}
	dim, normals, err := principalComponents(name, k, training)
	if err != nil {
		return err
	}
	c.proj.set(dim, normals)
	return nil
}

// principalComponents returns the top-k eigenvectors of the training
// covariance matrix as rows of a row-major k x dim matrix.
func principalComponents(name string, k int, training []vector.Vector) (int, []float64, error) {
	dim := training[0].Dim()
	if dim <= 0 {
		return 0, nil, fmt.Errorf("%w: hash %q: empty training vectors", ErrConfiguration, name)
	}
	if k > dim {
		return 0, nil, fmt.Errorf("%w: hash %q: %d components requested from %d dimensions", ErrConfiguration, name, k, dim)
	}
	if len(training) < 2 {
		return 0, nil, fmt.Errorf("%w: hash %q: need at least 2 training vectors", ErrConfiguration, name)
	}

	x := mat.NewDense(len(training), dim, nil)
	for i, v := range training {
		if v.Dim() != dim {
			return 0, nil, &DimensionMismatchError{Hash: name, Expected: dim, Actual: v.Dim(), kind: ErrConfiguration}
		}
		x.SetRow(i, v.Dense())
	}

	// CovarianceMatrix centers each column before accumulating.
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return 0, nil, fmt.Errorf("%w: hash %q: eigendecomposition failed", ErrConfiguration, name)
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	normals := make([]float64, k*dim)
	for r := 0; r < k; r++ {
		col := order[r]
		for j := 0; j < dim; j++ {
			normals[r*dim+j] = vecs.At(j, col)
		}
	}
	return dim, normals, nil
}

func (c *pcaCore) isHash() {}

// Name implements Hash.
func (c *pcaCore) Name() string { return c.name }

// Dim implements Hash.
func (c *pcaCore) Dim() int { return c.proj.dimension() }

// Reset implements Hash. It only validates dim against the training
// dimension.
func (c *pcaCore) Reset(dim int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.proj.dimension()
	if cur == 0 {
		return fmt.Errorf("%w: hash %q: PCA hash has not been trained", ErrConfiguration, c.name)
	}
	if cur != dim {
		return &DimensionMismatchError{Hash: c.name, Expected: cur, Actual: dim, kind: ErrConfiguration}
	}
	return nil
}

func (c *pcaCore) config(kind Kind) *Config {
	dim, normals := c.proj.snapshot()
	return &Config{
		Version:         ConfigVersion,
		Kind:            kind,
		Name:            c.name,
		Dim:             dim,
		ProjectionCount: c.proj.count(),
		Normals:         normals,
	}
}

func (c *pcaCore) apply(cfg *Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.proj.apply(cfg.Name, cfg); err != nil {
		return err
	}
	c.name = cfg.Name
	return nil
}

// PCABinaryProjections projects vectors onto the first k principal
// components of a training set and encodes the sign of each projection.
// Vectors are not centered at hash time.
type PCABinaryProjections struct {
	pcaCore
}

// NewPCABinaryProjections trains a PCA binary hash on training.
// With an empty training set the hash stays untrained until ApplyConfig.
func NewPCABinaryProjections(name string, k int, training []vector.Vector) (*PCABinaryProjections, error) {
	h := &PCABinaryProjections{}
	if err := h.init(name, k, training); err != nil {
		return nil, err
	}
	return h, nil
}

// Kind implements Hash.
func (h *PCABinaryProjections) Kind() Kind { return KindPCABinaryProjections }

// ProjectionCount implements BinaryHash.
func (h *PCABinaryProjections) ProjectionCount() int { return h.proj.count() }

// HashVector implements Hash. The key does not depend on querying.
func (h *PCABinaryProjections) HashVector(v vector.Vector, _ bool) ([]string, error) {
	return h.Keys(v)
}

// Keys implements Hash.
func (h *PCABinaryProjections) Keys(v vector.Vector) ([]string, error) {
	p, err := h.proj.project(h.name, v)
	if err != nil {
		return nil, err
	}
	return []string{binaryKey(p)}, nil
}

// Config implements Hash.
func (h *PCABinaryProjections) Config() (*Config, error) {
	return h.config(h.Kind()), nil
}

// ApplyConfig implements Hash.
func (h *PCABinaryProjections) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}
	return h.apply(cfg)
}

// PCADiscretizedProjections projects vectors onto the first k principal
// components of a training set and encodes floor(projection / binWidth).
type PCADiscretizedProjections struct {
	pcaCore
	binWidth float64
}

// NewPCADiscretizedProjections trains a PCA discretized hash on training.
func NewPCADiscretizedProjections(name string, k int, training []vector.Vector, binWidth float64) (*PCADiscretizedProjections, error) {
	if binWidth <= 0 {
		return nil, fmt.Errorf("%w: hash %q: bin width must be positive, got %g", ErrConfiguration, name, binWidth)
	}
	h := &PCADiscretizedProjections{binWidth: binWidth}
	if err := h.init(name, k, training); err != nil {
		return nil, err
	}
	return h, nil
}

// Kind implements Hash.
func (h *PCADiscretizedProjections) Kind() Kind { return KindPCADiscretizedProjections }

// BinWidth returns the discretization width.
func (h *PCADiscretizedProjections) BinWidth() float64 { return h.binWidth }

// HashVector implements Hash. The key does not depend on querying.
func (h *PCADiscretizedProjections) HashVector(v vector.Vector, _ bool) ([]string, error) {
	return h.Keys(v)
}

// Keys implements Hash.
func (h *PCADiscretizedProjections) Keys(v vector.Vector) ([]string, error) {
	p, err := h.proj.project(h.name, v)
	if err != nil {
		return nil, err
	}
	return []string{discretizedKey(p, h.binWidth)}, nil
}

// Config implements Hash.
func (h *PCADiscretizedProjections) Config() (*Config, error) {
	cfg := h.config(h.Kind())
	cfg.BinWidth = h.binWidth
	return cfg, nil
}

// ApplyConfig implements Hash.
func (h *PCADiscretizedProjections) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}
	if cfg.BinWidth <= 0 {
		return fmt.Errorf("%w: hash %q: bin width must be positive", ErrConfiguration, cfg.Name)
	}
	if err := h.apply(cfg); err != nil {
		return err
	}
	h.binWidth = cfg.BinWidth
	return nil
}
