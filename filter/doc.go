// Package filter post-processes candidate lists produced by a query.
//
// Filters compose left to right: each one consumes the output of the
// previous one. Unique can run before distances are computed; Nearest and
// DistanceThreshold require scored candidates.
package filter
