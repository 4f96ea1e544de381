package model

import (
	"fmt"

	"github.com/hupe1980/nearlsh/vector"
)

// Entry is one (vector, payload) pair stored in a bucket.
type Entry struct {
	Vector  vector.Vector `json:"vector"`
	Payload string        `json:"payload"`
}

// Candidate is a vector retrieved during a query.
//
// Distance is only meaningful when HasDistance is true, i.e. after the
// distance step of the query pipeline has run.
type Candidate struct {
	Vector      vector.Vector
	Payload     string
	Distance    float64
	HasDistance bool
}

// NewCandidate converts a stored entry into an unscored candidate.
func NewCandidate(e Entry) Candidate {
	return Candidate{Vector: e.Vector, Payload: e.Payload}
}

// WithDistance returns a copy of c carrying distance d.
func (c Candidate) WithDistance(d float64) Candidate {
	c.Distance = d
	c.HasDistance = true
	return c
}

// String returns a compact representation of the candidate.
func (c Candidate) String() string {
	if c.HasDistance {
		return fmt.Sprintf("Candidate(%s, %.6g)", c.Payload, c.Distance)
	}
	return fmt.Sprintf("Candidate(%s)", c.Payload)
}
