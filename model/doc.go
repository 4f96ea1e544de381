// Package model defines the entry and candidate types shared by storage,
// filters and the engine.
package model
