package gatelib

import "sort"

// RunSlice attaches the methods of sort.Interface to []*Run, sorting by
// StartedAt in chronological order.
type RunSlice []*Run

// Len returns the number of elements in the slice.
func (x RunSlice) Len() int { return len(x) }

// Less reports whether the run at index i started before the run at index j.
func (x RunSlice) Less(i, j int) bool {
	return x[i].StartedAt.Before(x[j].StartedAt)
}

// Swap exchanges the elements at indices i and j.
func (x RunSlice) Swap(i, j int) { x[i], x[j] = x[j], x[i] }

// SortRuns sorts runs chronologically by start time.
func SortRuns(x []*Run) { sort.Sort(RunSlice(x)) }
