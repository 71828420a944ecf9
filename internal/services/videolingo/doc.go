// Package videolingo integrates with a VideoLingo-compatible translation and
// dubbing job service.
//
// A job is submitted with a source URL and processing parameters, then
// observed via status snapshots until it reaches a terminal state. Wait owns
// the polling loop: transport errors are tolerated indefinitely, step-label
// changes surface as progress notifications, and exceeding the overall
// timeout synthesizes a failed status instead of hanging. Artifact downloads
// and remote task deletion round out the lifecycle; deletion is best-effort
// because cleanup must never block the pipeline.
package videolingo
