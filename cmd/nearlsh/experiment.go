package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/config"
	"github.com/hupe1980/nearlsh/experiment"
)

type experimentFlags struct {
	data        datasetFlags
	n           int
	coverage    float64
	concurrency int
}

func newExperimentCmd(g *globalFlags) *cobra.Command {
	f := &experimentFlags{}

	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Compare engines with exact search",
		Long: `Run quality experiments. Every engine description given as an
argument is evaluated on the same data set; without arguments the engine
of --config is used.

Examples:
  nearlsh experiment recall --random 1000 --dim 50 -n 10 rbp.yaml tree.yaml
  nearlsh experiment distance-ratio --data vectors.jsonl --coverage 0.1`,
	}
	cmd.PersistentFlags().IntVarP(&f.n, "neighbours", "n", 10, "Size of the exact neighbourhood")
	cmd.PersistentFlags().IntVar(&f.concurrency, "concurrency", 0, "Exact search workers (0 = GOMAXPROCS)")

	recall := &cobra.Command{
		Use:   "recall [engine.yaml...]",
		Short: "Measure recall and precision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecall(cmd, g, f, args)
		},
	}
	f.data.register(recall)

	ratio := &cobra.Command{
		Use:   "distance-ratio [engine.yaml...]",
		Short: "Measure the distance ratio of results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDistanceRatio(cmd, g, f, args)
		},
	}
	f.data.register(ratio)
	ratio.Flags().Float64Var(&f.coverage, "coverage", experiment.DefaultCoverage, "Share of vectors used as queries")

	cmd.AddCommand(recall, ratio)
	return cmd
}

func (f *experimentFlags) options() []experiment.Option {
	opts := []experiment.Option{}
	if f.concurrency > 0 {
		opts = append(opts, experiment.WithConcurrency(f.concurrency))
	}
	return opts
}

// engines builds one engine per description, or the --config engine.
func engines(ctx context.Context, cmd *cobra.Command, g *globalFlags, ds *dataset, descs []string) ([]string, []*nearlsh.Engine, func() error, error) {
	if len(descs) == 0 {
		descs = []string{g.configPath}
	}

	var (
		labels    []string
		out       []*nearlsh.Engine
		instances []*config.Instance
	)
	closeAll := func() error {
		var err error
		for _, inst := range instances {
			err = errors.Join(err, inst.Close())
		}
		return err
	}

	for _, desc := range descs {
		eg := *g
		eg.configPath = desc
		inst, err := eg.build(ctx, cmd, ds.dim(), ds)
		if err != nil {
			_ = closeAll()
			return nil, nil, nil, err
		}
		instances = append(instances, inst)
		label := desc
		if label == "" {
			label = "default"
		}
		labels = append(labels, label)
		out = append(out, inst.Engine)
	}
	return labels, out, closeAll, nil
}

type recallOutput struct {
	Engine string `json:"engine"`
	experiment.RecallPrecisionResult
}

func runRecall(cmd *cobra.Command, g *globalFlags, f *experimentFlags, args []string) (err error) {
	ctx := cmd.Context()
	ds, err := f.data.load(cmd.InOrStdin())
	if err != nil {
		return err
	}
	labels, engs, closeAll, err := engines(ctx, cmd, g, ds, args)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeAll()) }()

	rp, err := experiment.NewRecallPrecision(ctx, f.n, ds.vectors, f.options()...)
	if err != nil {
		return err
	}
	results, err := rp.Run(ctx, engs...)
	if err != nil {
		return err
	}

	out := make([]recallOutput, len(results))
	for i, r := range results {
		out[i] = recallOutput{Engine: labels[i], RecallPrecisionResult: r}
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

type distanceRatioOutput struct {
	Engine string `json:"engine"`
	experiment.DistanceRatioResult
}

func runDistanceRatio(cmd *cobra.Command, g *globalFlags, f *experimentFlags, args []string) (err error) {
	ctx := cmd.Context()
	ds, err := f.data.load(cmd.InOrStdin())
	if err != nil {
		return err
	}
	labels, engs, closeAll, err := engines(ctx, cmd, g, ds, args)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeAll()) }()

	dr, err := experiment.NewDistanceRatio(ctx, f.n, ds.vectors, f.coverage, f.options()...)
	if err != nil {
		return err
	}
	results, err := dr.Run(ctx, engs...)
	if err != nil {
		return fmt.Errorf("distance ratio: %w", err)
	}

	out := make([]distanceRatioOutput, len(results))
	for i, r := range results {
		out[i] = distanceRatioOutput{Engine: labels[i], DistanceRatioResult: r}
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
