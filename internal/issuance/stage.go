package issuance

import (
	"context"
	"time"
)

// Stage is a step of the issuance flow
type Stage string

// Issuance stages in the order they run
const (
	StageIdle           Stage = "idle"
	StageValidating     Stage = "validating"
	StageHashing        Stage = "hashing"
	StageRendering      Stage = "rendering"
	StageUploadInit     Stage = "upload_init"
	StageUploadConnect  Stage = "upload_connect"
	StageUpload         Stage = "upload"
	StageUploadFinalize Stage = "upload_finalize"
	StageCommitted      Stage = "committed"
)

// UploadStages are the simulated upload phases, run strictly in sequence
var UploadStages = []Stage{StageUploadInit, StageUploadConnect, StageUpload, StageUploadFinalize}

// Message returns the progress line shown for a stage
func (s Stage) Message() string {
	switch s {
	case StageValidating:
		return "Validating certificate details..."
	case StageHashing:
		return "Generating secure hash..."
	case StageRendering:
		return "Rendering certificate document..."
	case StageUploadInit:
		return "Initializing secure upload..."
	case StageUploadConnect:
		return "Connecting to cloud storage..."
	case StageUpload:
		return "Uploading certificate..."
	case StageUploadFinalize:
		return "Finalizing and verifying upload..."
	case StageCommitted:
		return "Certificate issued and stored."
	default:
		return ""
	}
}

// DelayFunc waits before a stage runs. It returns early with ctx.Err() when
// the context is cancelled.
type DelayFunc func(ctx context.Context, stage Stage) error

// ProgressFunc observes stage transitions
type ProgressFunc func(stage Stage)

// NoDelay runs every stage immediately
func NoDelay(ctx context.Context, _ Stage) error {
	return ctx.Err()
}

// FixedDelays sleeps for the duration listed for each stage. Stages not
// listed do not wait.
func FixedDelays(delays map[Stage]time.Duration) DelayFunc {
	return func(ctx context.Context, stage Stage) error {
		d := delays[stage]
		if d <= 0 {
			return ctx.Err()
		}

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// StageDelays maps the configured render, init, connect, upload and
// finalize delays onto their stages
func StageDelays(d [5]time.Duration) map[Stage]time.Duration {
	return map[Stage]time.Duration{
		StageRendering:      d[0],
		StageUploadInit:     d[1],
		StageUploadConnect:  d[2],
		StageUpload:         d[3],
		StageUploadFinalize: d[4],
	}
}
