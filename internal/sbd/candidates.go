package sbd

import "fmt"

// SelectCandidates turns a record and its threshold vector into boundary
// events.
//
// SelectAllAbove emits (k, k+1) for every k with distances[k] > thresholds[k];
// the indices stay record-local. SelectArgmax ignores thresholds and emits a
// single event at the peak distance, offset by the record's StartFrame. When
// nothing qualifies (including an empty distance vector) the result is the
// single sentinel event.
func SelectCandidates(rec RawResult, thresholds []float64, policy SelectionPolicy) ([]BoundaryEvent, error) {
	switch policy {
	case SelectAllAbove:
		if len(thresholds) != len(rec.Distances) {
			return nil, fmt.Errorf("%w: %d thresholds for %d distances in %s",
				ErrBadBoundaries, len(thresholds), len(rec.Distances), rec.VideoName)
		}
		var events []BoundaryEvent
		for k, d := range rec.Distances {
			if d > thresholds[k] {
				events = append(events, BoundaryEvent{VideoName: rec.VideoName, Prev: k, Curr: k + 1})
			}
		}
		if len(events) == 0 {
			return []BoundaryEvent{NoBoundary(rec.VideoName)}, nil
		}
		return events, nil

	case SelectArgmax:
		if len(rec.Distances) == 0 {
			return []BoundaryEvent{NoBoundary(rec.VideoName)}, nil
		}
		// First maximum wins.
		best := 0
		for k, d := range rec.Distances {
			if d > rec.Distances[best] {
				best = k
			}
		}
		k := best + rec.StartFrame
		return []BoundaryEvent{{VideoName: rec.VideoName, Prev: k, Curr: k + 1}}, nil
	}
	return nil, fmt.Errorf("%w: unknown candidate selection policy %d", ErrInvalidConfiguration, policy)
}

// CountBoundaries returns the number of real (non-sentinel) events.
func CountBoundaries(events []BoundaryEvent) int {
	n := 0
	for _, e := range events {
		if !e.IsSentinel() {
			n++
		}
	}
	return n
}
