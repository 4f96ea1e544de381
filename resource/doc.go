// Package resource limits how much background work and snapshot IO an
// engine performs.
//
// Permuted index builds run through RunBackground, which admits at most
// MaxBackgroundWorkers jobs at a time. Snapshot writes and restores call
// Throttle with their byte count first.
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 2,
//	    IOLimitBytesPerSec:   64 << 20,
//	})
//	engine, err := nearlsh.New(dim, hashes, nearlsh.WithResourceController(rc))
package resource
