package pipeline

import (
	"strings"
	"time"

	"lingoflow/internal/history"
	"lingoflow/internal/services/ytdlp"
)

const uploadDateLayout = "20060102"

// filterReason applies the static candidate filters in order: duration
// bounds, channel blacklist, recency cutoff. Unknown durations and malformed
// upload dates pass their checks rather than rejecting.
func (r *Runner) filterReason(video ytdlp.Video) (string, bool) {
	if video.Duration > 0 {
		if video.Duration < r.cfg.YouTube.MinDurationSec || video.Duration > r.cfg.YouTube.MaxDurationSec {
			return history.ReasonDurationOutOfRange, true
		}
	}
	if video.Uploader != "" {
		if _, ok := r.blacklist[strings.ToLower(video.Uploader)]; ok {
			return history.ReasonBlacklistedChannel, true
		}
	}
	if len(video.UploadDate) == len(uploadDateLayout) && r.cfg.YouTube.PublishedAfterDays > 0 {
		if published, err := time.Parse(uploadDateLayout, video.UploadDate); err == nil {
			cutoff := r.now().AddDate(0, 0, -r.cfg.YouTube.PublishedAfterDays)
			if published.Before(cutoff) {
				return history.ReasonTooOld, true
			}
		}
	}
	return "", false
}
