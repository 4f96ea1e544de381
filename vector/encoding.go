package vector

import (
	"fmt"

	"github.com/goccy/go-json"
)

// wire is the serialized form of a Vector. Dense vectors set Dense;
// sparse vectors set Indices and Values.
type wire struct {
	Dim     int       `json:"dim"`
	Dense   []float64 `json:"dense,omitempty"`
	Indices []int     `json:"indices,omitempty"`
	Values  []float64 `json:"values,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Vector) MarshalJSON() ([]byte, error) {
	if v.sparse {
		return json.Marshal(wire{Dim: v.dim, Indices: v.indices, Values: v.values})
	}
	return json.Marshal(wire{Dim: v.dim, Dense: v.dense})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Dense != nil || (w.Dim == 0 && len(w.Indices) == 0) {
		if len(w.Dense) != w.Dim {
			return fmt.Errorf("vector: dense length %d does not match dimension %d", len(w.Dense), w.Dim)
		}
		*v = NewDense(w.Dense)
		return nil
	}
	sv, err := NewSparse(w.Dim, w.Indices, w.Values)
	if err != nil {
		return err
	}
	*v = sv
	return nil
}
