// Package permutation implements approximate Hamming-neighbour lookup over a
// set of fixed-length binary bucket keys.
//
// An Index holds P random bit permutations. For each permutation every known
// key is permuted and the (permuted, original) pairs are sorted. A query key
// is permuted the same way, located by binary search, and the beam of
// entries around that position is collected. The union over all
// permutations is re-ranked by true Hamming distance.
//
// Build cost is O(P * n log n); a lookup costs
// O(P * (log n + beam) + u log u) for a union of size u.
//
// Indexes are immutable once built. A Registry publishes them per hash name
// with copy-on-write semantics so readers never observe a partial rebuild.
package permutation
