// Package testutil provides seeded, concurrency-safe random data generation
// for nearlsh tests and experiments.
package testutil
