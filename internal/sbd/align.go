package sbd

import "fmt"

// AlignFrames scores predicted boundaries against ground truth over every
// frame position j in [0, frameCount-1]. Position j is a boundary when the
// pair (j-1, j) is present in the respective set; membership is exact.
// Position 0 can never match and counts as a true negative.
func AlignFrames(pred, gt []BoundaryEvent, frameCount int) ConfusionCounts {
	predSet := boundarySet(pred)
	gtSet := boundarySet(gt)

	var c ConfusionCounts
	for j := 0; j < frameCount; j++ {
		key := [2]int{j - 1, j}
		_, inPred := predSet[key]
		_, inGT := gtSet[key]
		switch {
		case inPred && inGT:
			c.TP++
		case inGT:
			c.FN++
		case inPred:
			c.FP++
		default:
			c.TN++
		}
	}
	return c
}

func boundarySet(events []BoundaryEvent) map[[2]int]struct{} {
	set := make(map[[2]int]struct{}, len(events))
	for _, e := range events {
		if e.IsSentinel() {
			continue
		}
		set[e.key()] = struct{}{}
	}
	return set
}

// ValidateGroundTruth checks that every ground-truth boundary lies inside a
// video of frameCount frames.
func ValidateGroundTruth(video string, gt []BoundaryEvent, frameCount int) error {
	for _, e := range gt {
		if e.Prev < 0 || e.Curr < 0 || e.Prev >= frameCount || e.Curr >= frameCount {
			return fmt.Errorf("%w: %s boundary (%d,%d) outside %d frames",
				ErrBadGroundTruth, video, e.Prev, e.Curr, frameCount)
		}
	}
	return nil
}
