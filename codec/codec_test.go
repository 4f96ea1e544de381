package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

func TestCodecsInterop(t *testing.T) {
	in := sample{Name: "rbp", Values: []float64{0.25, -1.5, 3}}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())

			data, err := c.Marshal(in)
			require.NoError(t, err)

			// Both codecs speak plain JSON, so either reads the other.
			for _, other := range []Codec{JSON{}, GoJSON{}} {
				var out sample
				require.NoError(t, other.Unmarshal(data, &out))
				assert.Equal(t, in, out)
			}
		})
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestDefault(t *testing.T) {
	assert.Equal(t, NameGoJSON, Default.Name())
}
