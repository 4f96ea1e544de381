// Package blobstore is the home of engine snapshots and hash
// configuration blobs.
//
// A BlobStore maps names to immutable byte blobs. Snapshots are written
// under their own names and then published by rewriting the CURRENT
// blob, so a reader always sees either the old or the new snapshot.
//
// Backends:
//
//   - MemoryStore keeps blobs in process, mostly for tests.
//   - LocalStore writes files below a directory and reads them mmapped.
//   - s3.Store and s3.DDBCommitStore talk to Amazon S3, the latter with
//     the CURRENT pointer in DynamoDB.
//   - minio.Store talks to MinIO and other S3-compatible services.
//
// Implementations are safe for concurrent use. Open reports missing blobs
// with an error matching ErrNotFound.
package blobstore
