package sweeper

import "container/heap"

// sweepHeap implements container/heap.Interface for Event,
// sorted by DueAt (earliest first, min-heap).
type sweepHeap []Event

func (h sweepHeap) Len() int           { return len(h) }
func (h sweepHeap) Less(i, j int) bool { return h[i].DueAt.Before(h[j].DueAt) }
func (h sweepHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *sweepHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *sweepHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// heapPush adds an Event to the heap, maintaining the heap invariant.
func heapPush(h *sweepHeap, e Event) {
	heap.Push(h, e)
}

// heapPop removes and returns the Event with the earliest DueAt.
// Panics if the heap is empty.
func heapPop(h *sweepHeap) Event {
	return heap.Pop(h).(Event)
}

// heapRemoveByRun removes the first Event carrying the given run id.
// Returns true if the event was found and removed, false otherwise.
func heapRemoveByRun(h *sweepHeap, runID string) bool {
	for i, e := range *h {
		if e.RunID != "" && e.RunID == runID {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
