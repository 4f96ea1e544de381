// Package nearlsh provides approximate nearest-neighbour search based on
// locality-sensitive hashing.
//
// An Engine indexes vectors into buckets with one or more hash strategies
// from package lshash. Vectors that are close in the original space tend
// to share a bucket, so a query only scores the vectors found in its own
// buckets instead of the whole data set.
//
// # Quick Start
//
//	ctx := context.Background()
//	rbp, _ := lshash.NewRandomBinaryProjections("rbp", 10)
//	eng, _ := nearlsh.New(100, []lshash.Hash{rbp},
//	    nearlsh.WithDistance(distance.MetricCosine),
//	    nearlsh.WithFilters(filter.NewNearest(10)),
//	)
//	defer eng.Close()
//
//	_ = eng.StoreVector(ctx, v, "doc-1")
//	results, _ := eng.Neighbours(ctx, query)
//
// # Query Pipeline
//
// Neighbours runs four steps:
//
//  1. Every hash maps the query to one or more bucket keys in querying
//     mode. Meta-hashes may expand a key into its approximate Hamming
//     neighbours.
//  2. All entries of those buckets are collected, duplicates included.
//     Fetch filters (WithFetchFilters) run on the raw candidates.
//  3. The configured distance scores every candidate (skipped with
//     WithoutDistance).
//  4. The filter chain (WithFilters) runs left to right. The default chain
//     is NearestFilter(10), or empty when scoring is disabled.
//
// # Hash Strategies
//
//   - RandomBinaryProjections: sign of k random projections, "0101..."
//   - RandomDiscretizedProjections: floor(p/binWidth) per projection, "3_-1_0"
//   - PCABinaryProjections / PCADiscretizedProjections: trained directions
//   - RandomBinaryProjectionTree: guarantees a minimum result size
//   - UniBucket: a single bucket, i.e. brute force
//   - HashPermutations / HashPermutationMapper: Hamming neighbour expansion
//
// HashPermutations needs BuildPermutedIndex after a batch of stores;
// querying before the first build fails with ErrPrecondition.
//
// # Storage
//
// The engine is built against storage.Storage. The default is the
// in-memory store from storage/memory, which can also snapshot itself to
// any blob store (local disk, S3, S3 with a DynamoDB commit table, MinIO).
// storage/sqlite offers a persistent store.
//
// # Errors
//
// Errors match with errors.Is against ErrConfiguration, ErrPrecondition,
// ErrInvalidArgument and ErrClosed. *ErrDimensionMismatch carries the
// expected and actual dimension. Unknown buckets are empty, never errors.
package nearlsh
