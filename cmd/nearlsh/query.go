package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/hupe1980/nearlsh/config"
	"github.com/hupe1980/nearlsh/storage/memory"
	"github.com/hupe1980/nearlsh/vector"
)

type queryFlags struct {
	data    datasetFlags
	target  targetFlags
	vector  string
	restore string
}

type queryResult struct {
	Payload  string   `json:"payload"`
	Distance *float64 `json:"distance,omitempty"`
}

type queryOutput struct {
	Query   string        `json:"query"`
	Results []queryResult `json:"results"`
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	f := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find approximate neighbours",
		Long: `Query the engine with one vector (--vector) or every vector of a data
set. With --restore the storage is loaded from the latest snapshot of a
blob store; otherwise the storage of the engine description is used.
Saved hash configurations are applied before querying.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, g, f)
		},
	}
	f.data.register(cmd)
	f.target.register(cmd)
	cmd.Flags().StringVar(&f.vector, "vector", "", "Comma separated query vector")
	cmd.Flags().StringVar(&f.restore, "restore", "", "Restore the storage from this blob store")
	return cmd
}

func runQuery(cmd *cobra.Command, g *globalFlags, f *queryFlags) (err error) {
	ctx := cmd.Context()

	var queries *dataset
	if f.vector != "" {
		v, err := parseVector(f.vector)
		if err != nil {
			return err
		}
		queries = &dataset{vectors: []vector.Vector{v}, payloads: []string{f.vector}}
	} else {
		if queries, err = f.data.load(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	var buildOpts []config.BuildOption
	if f.restore != "" {
		store, openErr := restoreStore(cmd, &f.target, f.restore)
		if openErr != nil {
			return openErr
		}
		defer func() { err = errors.Join(err, store.Close()) }()
		buildOpts = append(buildOpts, config.WithStorage(store))
	}

	// PCA hashes are trained on the queries and then replaced by their
	// saved configuration.
	inst, err := g.build(ctx, cmd, queries.dim(), queries, buildOpts...)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, inst.Close()) }()

	engine := inst.Engine
	if _, err := engine.LoadHashConfigs(ctx); err != nil {
		return err
	}
	if err := engine.BuildPermutedIndex(ctx); err != nil {
		return err
	}

	out := make([]queryOutput, 0, len(queries.vectors))
	for i, v := range queries.vectors {
		results, err := engine.Neighbours(ctx, v)
		if err != nil {
			return err
		}
		qo := queryOutput{Query: queries.payloads[i], Results: make([]queryResult, len(results))}
		for j, r := range results {
			qo.Results[j] = queryResult{Payload: r.Payload}
			if r.HasDistance {
				d := r.Distance
				qo.Results[j].Distance = &d
			}
		}
		out = append(out, qo)
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func restoreStore(cmd *cobra.Command, t *targetFlags, raw string) (*memory.Store, error) {
	bs, err := t.open(cmd.Context(), raw)
	if err != nil {
		return nil, err
	}
	return memory.Open(cmd.Context(), bs)
}
