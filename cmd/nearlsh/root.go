package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/config"
)

// Set by the release build.
var (
	version = "dev"
	commit  = "none"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "nearlsh",
		Short: "Approximate nearest neighbour search with LSH",
		Long: `nearlsh stores vectors in hash buckets and answers approximate
nearest neighbour queries by scoring the candidates of matching buckets.

Engines are described in YAML (see --config). Without a description the
default engine is used: one random binary projection hash with 10
projections, Euclidean distance and the 10 nearest results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Engine description (YAML)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log engine operations to stderr")

	cmd.AddCommand(
		newExperimentCmd(g),
		newIndexCmd(g),
		newQueryCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// loadSpec reads --config, or describes a default engine for dim.
func (g *globalFlags) loadSpec(dim int) (*config.EngineSpec, error) {
	if g.configPath == "" {
		spec := &config.EngineSpec{Dimension: dim}
		return spec, spec.Validate()
	}
	spec, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if spec.Dimension != dim {
		return nil, fmt.Errorf("%s describes dimension %d, data has %d", g.configPath, spec.Dimension, dim)
	}
	return spec, nil
}

// build creates an engine for dim from the global flags.
func (g *globalFlags) build(ctx context.Context, cmd *cobra.Command, dim int, ds *dataset, optFns ...config.BuildOption) (*config.Instance, error) {
	spec, err := g.loadSpec(dim)
	if err != nil {
		return nil, err
	}
	if ds != nil {
		optFns = append(optFns, config.WithTrainingSet(ds.vectors))
	}
	if g.verbose {
		logger := nearlsh.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
		optFns = append(optFns, config.WithEngineOptions(nearlsh.WithLogger(logger)))
	}
	return config.Build(ctx, spec, optFns...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
