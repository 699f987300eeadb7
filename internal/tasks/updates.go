package tasks

import (
	"fmt"

	"github.com/desertthunder/onyx/internal/models"
)

// ProgressUpdate represents a progress event for one prefetched track.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Position of the track within its batch
	Total   int    // Batch size
	TrackID string // Catalog or video id as submitted
	VideoID string // Resolved video id, once known
	Message string // Human-readable message for display
	Err     error  // Set for Failed updates
}

// Operation phase enumeration
type Phase int

const (
	Resolving Phase = iota
	Downloading
	Completed
	Skipped
	Failed
)

func (p Phase) String() string {
	switch p {
	case Resolving:
		return "resolving"
	case Downloading:
		return "downloading"
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func resolvingUpdate(step, total int, t models.PrefetchTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolving,
		Step:    step,
		Total:   total,
		TrackID: t.ID,
		Message: fmt.Sprintf("[%d/%d] Resolving %s - %s...", step, total, t.Artist, t.Name),
	}
}

func downloadingUpdate(step, total int, t models.PrefetchTrack, videoID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Downloading,
		Step:    step,
		Total:   total,
		TrackID: t.ID,
		VideoID: videoID,
		Message: fmt.Sprintf("[%d/%d] Downloading %s...", step, total, videoID),
	}
}

func completedUpdate(step, total int, t models.PrefetchTrack, videoID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Completed,
		Step:    step,
		Total:   total,
		TrackID: t.ID,
		VideoID: videoID,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, videoID),
	}
}

func skippedUpdate(step, total int, t models.PrefetchTrack, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Skipped,
		Step:    step,
		Total:   total,
		TrackID: t.ID,
		Message: fmt.Sprintf("[%d/%d] - %s: %s", step, total, t.ID, reason),
	}
}

func failedUpdate(step, total int, t models.PrefetchTrack, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		TrackID: t.ID,
		Err:     err,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, t.ID, err),
	}
}
