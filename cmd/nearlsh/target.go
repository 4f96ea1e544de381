package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/nearlsh/blobstore"
	"github.com/hupe1980/nearlsh/blobstore/minio"
	"github.com/hupe1980/nearlsh/blobstore/s3"
)

// targetFlags locate a snapshot blob store.
type targetFlags struct {
	ddbTable      string
	minioInsecure bool
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ddbTable, "ddb-table", "", "DynamoDB table holding the CURRENT pointer of s3:// targets")
	cmd.Flags().BoolVar(&f.minioInsecure, "minio-insecure", false, "Use plain HTTP for minio:// targets")
}

// target is a parsed blob store location.
type target struct {
	scheme string
	host   string
	path   string
	raw    string
}

// parseTarget accepts file:///dir, a bare directory, s3://bucket/prefix
// and minio://endpoint/bucket/prefix.
func parseTarget(raw string) (target, error) {
	if !strings.Contains(raw, "://") {
		if raw == "" {
			return target{}, fmt.Errorf("empty target")
		}
		return target{scheme: "file", path: raw, raw: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	t := target{scheme: u.Scheme, host: u.Host, path: strings.Trim(u.Path, "/"), raw: raw}
	switch t.scheme {
	case "file":
		t.path = u.Path
		if t.path == "" {
			return target{}, fmt.Errorf("file target %q has no path", raw)
		}
	case "s3":
		if t.host == "" {
			return target{}, fmt.Errorf("s3 target %q has no bucket", raw)
		}
	case "minio":
		if t.host == "" || t.path == "" {
			return target{}, fmt.Errorf("minio target %q needs minio://endpoint/bucket[/prefix]", raw)
		}
	default:
		return target{}, fmt.Errorf("unsupported target scheme %q", t.scheme)
	}
	return t, nil
}

func (f *targetFlags) open(ctx context.Context, raw string) (blobstore.BlobStore, error) {
	t, err := parseTarget(raw)
	if err != nil {
		return nil, err
	}
	if f.ddbTable != "" && t.scheme != "s3" {
		return nil, fmt.Errorf("--ddb-table requires an s3:// target")
	}

	switch t.scheme {
	case "s3":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		store := s3.NewStore(awss3.NewFromConfig(cfg), t.host, t.path)
		if f.ddbTable == "" {
			return store, nil
		}
		return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), f.ddbTable, t.raw), nil
	case "minio":
		bucket, prefix, _ := strings.Cut(t.path, "/")
		client, err := miniogo.New(t.host, &miniogo.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: !f.minioInsecure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.NewStore(client, bucket, prefix), nil
	default:
		if err := os.MkdirAll(t.path, 0o755); err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(t.path), nil
	}
}
