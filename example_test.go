package nearlsh_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/filter"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/vector"
)

func Example() {
	ctx := context.Background()

	rbp, err := lshash.NewRandomBinaryProjections("rbp", 4, lshash.WithSeed(1))
	if err != nil {
		log.Fatal(err)
	}

	engine, err := nearlsh.New(3, []lshash.Hash{rbp, lshash.NewUniBucket("all")},
		nearlsh.WithFetchFilters(filter.NewUnique()),
		nearlsh.WithFilters(filter.NewNearest(2)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	points := map[string][]float64{
		"origin": {0, 0, 0},
		"near":   {0.1, 0, 0},
		"far":    {5, 5, 5},
	}
	for payload, p := range points {
		if err := engine.StoreVector(ctx, vector.NewDense(p), payload); err != nil {
			log.Fatal(err)
		}
	}

	results, err := engine.Neighbours(ctx, vector.NewDense([]float64{0, 0, 0}))
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range results {
		fmt.Printf("%s %.1f\n", r.Payload, r.Distance)
	}
	// Output:
	// origin 0.0
	// near 0.1
}
