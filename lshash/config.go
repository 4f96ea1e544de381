package lshash

import (
	"fmt"

	"github.com/hupe1980/nearlsh/codec"
	"github.com/hupe1980/nearlsh/internal/frame"
	"github.com/hupe1980/nearlsh/permutation"
)

// ConfigVersion is the current hash configuration schema version.
const ConfigVersion = 1

// Config is the versioned, serializable snapshot of a hash's parameters.
// Fields not used by a kind are left empty.
type Config struct {
	Version int    `json:"version"`
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Dim     int    `json:"dim"`

	ProjectionCount int     `json:"projection_count,omitempty"`
	BinWidth        float64 `json:"bin_width,omitempty"`
	MinResultSize   int     `json:"min_result_size,omitempty"`

	// Normals holds the projection directions row-major
	// (ProjectionCount x Dim).
	Normals []float64 `json:"normals,omitempty"`

	// Tree is the arena of the projection tree; index 0 is the root.
	Tree []TreeNodeConfig `json:"tree,omitempty"`

	// Children of a permutation meta-hash.
	Children []ChildConfig `json:"children,omitempty"`

	// BucketKeyMap of a HashPermutationMapper.
	BucketKeyMap map[string][]string `json:"bucket_key_map,omitempty"`
}

// TreeNodeConfig is one trie node. Children are arena indices, -1 if absent.
type TreeNodeConfig struct {
	Count     int      `json:"count"`
	Children  [2]int32 `json:"children"`
	BucketKey string   `json:"bucket_key,omitempty"`
}

// ChildConfig describes one child of a permutation meta-hash.
type ChildConfig struct {
	Hash *Config `json:"hash"`
	// Permute is only set for HashPermutations children.
	Permute *permutation.Config `json:"permute,omitempty"`
	// BucketKeys registered at index time (HashPermutations only).
	BucketKeys []string `json:"bucket_keys,omitempty"`
}

// EncodeConfig serializes cfg into a checksummed frame.
func EncodeConfig(cfg *Config, c codec.Codec, comp frame.Compression) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfiguration)
	}
	return frame.Encode(c, comp, cfg)
}

// DecodeConfig parses a frame produced by EncodeConfig.
func DecodeConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := frame.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode hash config: %w", err)
	}
	return &cfg, nil
}
