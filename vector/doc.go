// Package vector provides the single vector abstraction used throughout
// nearlsh.
//
// A Vector is either dense (a contiguous []float64) or sparse (sorted
// index/value pairs over a fixed dimension). Callers check IsSparse where the
// representation matters; everything else (dot products against projection
// rows, norms, densification) is available on both.
package vector
