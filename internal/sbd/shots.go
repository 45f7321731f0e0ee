package sbd

import (
	"fmt"
	"sort"
)

// ReconstructShots converts the boundary events of one video into a shot
// list covering [0, frameCount-1]. k boundaries yield k+1 shots; a
// sentinel-only (or empty) event list yields a single shot.
//
// Shot i ends at boundary i's Prev frame and shot i+1 starts at its Curr
// frame. Events must satisfy Curr == Prev+1 and lie inside the video.
func ReconstructShots(video string, events []BoundaryEvent, frameCount int) ([]Shot, error) {
	if frameCount <= 0 {
		return nil, fmt.Errorf("%w: video %s has %d frames", ErrBadBoundaries, video, frameCount)
	}

	cuts := make([]BoundaryEvent, 0, len(events))
	for _, e := range events {
		if e.IsSentinel() {
			continue
		}
		if e.Curr != e.Prev+1 {
			return nil, fmt.Errorf("%w: %s boundary (%d,%d) is not between adjacent frames",
				ErrBadBoundaries, video, e.Prev, e.Curr)
		}
		cuts = append(cuts, e)
	}

	if len(cuts) == 0 {
		return []Shot{{ID: 1, VideoName: video, StartFrame: 0, EndFrame: frameCount - 1}}, nil
	}

	sort.SliceStable(cuts, func(i, j int) bool { return cuts[i].Prev < cuts[j].Prev })

	shots := make([]Shot, 0, len(cuts)+1)
	start := 0
	for i, e := range cuts {
		shots = append(shots, Shot{ID: i + 1, VideoName: video, StartFrame: start, EndFrame: e.Prev})
		start = e.Curr
	}
	shots = append(shots, Shot{ID: len(cuts) + 1, VideoName: video, StartFrame: start, EndFrame: frameCount - 1})

	for _, s := range shots {
		if s.StartFrame < 0 || s.StartFrame > s.EndFrame {
			return nil, fmt.Errorf("%w: %s shot %d spans [%d,%d] in a %d-frame video",
				ErrBadBoundaries, video, s.ID, s.StartFrame, s.EndFrame, frameCount)
		}
	}
	return shots, nil
}

// ShotsToBoundaries derives boundary events from consecutive shot pairs
// (shot[i-1].EndFrame, shot[i].StartFrame). It is the inverse of
// ReconstructShots for contiguous shot lists.
func ShotsToBoundaries(shots []Shot) []BoundaryEvent {
	if len(shots) < 2 {
		return nil
	}
	events := make([]BoundaryEvent, 0, len(shots)-1)
	for i := 1; i < len(shots); i++ {
		events = append(events, BoundaryEvent{
			VideoName: shots[i].VideoName,
			Prev:      shots[i-1].EndFrame,
			Curr:      shots[i].StartFrame,
		})
	}
	return events
}
