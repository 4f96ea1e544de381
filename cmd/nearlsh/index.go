package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/nearlsh/storage/memory"
)

type indexFlags struct {
	data     datasetFlags
	target   targetFlags
	snapshot string
	prune    bool
}

type indexOutput struct {
	Vectors  int      `json:"vectors"`
	Hashes   []string `json:"hashes"`
	Snapshot string   `json:"snapshot,omitempty"`
	Pruned   []string `json:"pruned,omitempty"`
}

func newIndexCmd(g *globalFlags) *cobra.Command {
	f := &indexFlags{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Store a data set and persist the engine",
		Long: `Store every vector of a data set, rebuild permuted indexes and save
the hash configurations to the storage.

With --snapshot the in-memory storage is written to a blob store:
  file:///var/lib/nearlsh      local directory
  s3://bucket/prefix           S3 (add --ddb-table for a DynamoDB CURRENT pointer)
  minio://host:9000/bucket     MinIO (MINIO_ACCESS_KEY, MINIO_SECRET_KEY)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, g, f)
		},
	}
	f.data.register(cmd)
	f.target.register(cmd)
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "Write a snapshot to this blob store")
	cmd.Flags().BoolVar(&f.prune, "prune", false, "Delete snapshots other than the new one")
	return cmd
}

func runIndex(cmd *cobra.Command, g *globalFlags, f *indexFlags) (err error) {
	ctx := cmd.Context()
	if f.prune && f.snapshot == "" {
		return errors.New("--prune requires --snapshot")
	}

	ds, err := f.data.load(cmd.InOrStdin())
	if err != nil {
		return err
	}
	inst, err := g.build(ctx, cmd, ds.dim(), ds)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, inst.Close()) }()

	engine := inst.Engine
	if err := engine.StoreManyVectors(ctx, ds.vectors, ds.payloads); err != nil {
		return err
	}
	if err := engine.BuildPermutedIndex(ctx); err != nil {
		return err
	}
	if err := engine.SaveHashConfigs(ctx); err != nil {
		return err
	}

	out := indexOutput{Vectors: len(ds.vectors)}
	for _, h := range engine.Hashes() {
		out.Hashes = append(out.Hashes, h.Name())
	}

	if f.snapshot != "" {
		bs, err := f.target.open(ctx, f.snapshot)
		if err != nil {
			return err
		}
		if b, ok := bs.(interface{ EnsureBucket(context.Context) error }); ok {
			if err := b.EnsureBucket(ctx); err != nil {
				return err
			}
		}
		name, err := engine.Snapshot(ctx, bs)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		out.Snapshot = name
		if f.prune {
			pruned, err := memory.PruneSnapshots(ctx, bs)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			out.Pruned = pruned
		}
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
