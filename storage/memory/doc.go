// Package memory is the in-process bucket store and the engine default.
//
// Each hash name owns a partition with its own lock. Stored entries get
// an increasing row id; buckets and payloads are roaring bitmaps over
// those ids, so bucket iteration is insertion ordered and deleting a
// payload from a bucket is a single bitmap AND.
//
// A Store can be written to and restored from any blobstore.BlobStore:
//
//	mem := memory.New(memory.WithCompression(memory.CompressionZSTD))
//	name, err := mem.Snapshot(ctx, store) // snapshots/<uuid> + CURRENT
//	...
//	restored, err := memory.Open(ctx, store)
package memory
