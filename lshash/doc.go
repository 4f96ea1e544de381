// Package lshash provides the locality-sensitive hash strategies that map a
// vector to bucket keys.
//
// # Strategies
//
//   - RandomBinaryProjections: sign of k random Gaussian projections, a
//     k-character '0'/'1' key
//   - RandomDiscretizedProjections: floor(projection / binWidth) per random
//     projection, joined by '_'
//   - PCABinaryProjections, PCADiscretizedProjections: as above, projecting
//     onto the top-k principal components of a training set
//   - RandomBinaryProjectionTree: binary projections plus a counting trie
//     that widens query results to at least a minimum number of vectors
//   - UniBucket: every vector maps to a single bucket named after the hash
//
// # Meta-hashes
//
//   - HashPermutations: wraps binary child hashes and expands query keys to
//     approximate Hamming neighbours using a permuted index that must be
//     built explicitly with BuildPermutedIndex
//   - HashPermutationMapper: wraps binary child hashes and registers every
//     single-bit-flip variant at index time; no build step
//
// Every hash is reset once to a dimension and is locked to it afterwards.
// Random parameters come from an explicit seedable source (WithSeed,
// WithRand) and can be persisted with Config / ApplyConfig.
package lshash
