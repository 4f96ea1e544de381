// Package minio keeps engine snapshots in MinIO or another S3-compatible
// service (Ceph RGW, Garage, SeaweedFS) using the MinIO Go client.
//
//	client, _ := miniogo.New("localhost:9000", &miniogo.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store := minio.NewStore(client, "lsh", "prod/")
//	name, err := engine.Snapshot(ctx, store)
//
// Snapshots are small relative to object store latency, so Open fetches a
// blob in a single GET and serves reads from memory.
package minio
