// Package s3 keeps engine snapshots in Amazon S3.
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "nearlsh/")
//	name, err := engine.Snapshot(ctx, store)
//
// Large snapshots are uploaded in parts, small blobs in one PUT with a
// CRC32C checksum. Reads are ranged GETs.
//
// DDBCommitStore moves the CURRENT pointer into a DynamoDB table so that
// writers sharing a prefix cannot overwrite each other's commit, and keeps
// the commit history queryable.
package s3
