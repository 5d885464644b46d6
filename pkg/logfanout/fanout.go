// Package logfanout streams a job's event log to subscribers: existing
// events first (replay), then newly-appended events polled at a fixed
// interval, then a terminal marker once the job reaches a terminal
// state — spec §4.9.
package logfanout

import (
	"context"
	"log/slog"
	"time"

	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
)

// bufferSize bounds how many unread frames a slow subscriber can
// accumulate before non-terminal events start being dropped, oldest
// first (spec §5: "drop oldest is acceptable for non-terminal events;
// the terminal event must be delivered").
const bufferSize = 64

// pollInterval is how often a subscriber checks the store for new
// events once replay has caught up (spec §4.9 step 2).
const pollInterval = time.Second

// FrameType distinguishes a log line from the stream's terminal marker.
type FrameType string

const (
	FrameEvent    FrameType = "event"
	FrameComplete FrameType = "complete"
)

// Frame is one unit sent to a subscriber.
type Frame struct {
	Type  FrameType
	Event jobstore.Event
	State jobstore.ExecutionState // populated only on FrameComplete
}

// EventReader is the subset of jobstore.Store the fan-out depends on for
// reading a job's event log.
type EventReader interface {
	EventsSince(ctx context.Context, jobID string, afterID int64) ([]jobstore.Event, error)
}

// JobReader is the subset of jobstore.Store the fan-out depends on for
// checking whether a job has reached a terminal state.
type JobReader interface {
	GetJob(ctx context.Context, tenantID, jobID string) (*jobstore.Job, error)
}

// FanOut drives per-job SSE subscriptions over a JobStore.
type FanOut struct {
	events EventReader
	jobs   JobReader
}

// New builds a FanOut over the given store accessors.
func New(events EventReader, jobs JobReader) *FanOut {
	return &FanOut{events: events, jobs: jobs}
}

// Subscribe replays every existing event for (tenantID, jobID), then
// polls for new ones until the job reaches a terminal state, at which
// point it emits one FrameComplete frame and closes the returned
// channel. The channel is closed and the goroutine exits promptly when
// ctx is cancelled, satisfying the "subscriber cancellation is total and
// idempotent" requirement.
func (f *FanOut) Subscribe(ctx context.Context, tenantID, jobID string) <-chan Frame {
	out := make(chan Frame, bufferSize)
	go f.run(ctx, tenantID, jobID, out)
	return out
}

func (f *FanOut) run(ctx context.Context, tenantID, jobID string, out chan Frame) {
	defer close(out)

	var lastID int64
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Initial replay happens on the same poll path as the live tail —
	// EventsSince(ctx, jobID, 0) is just "every event so far".
	if !f.pollOnce(ctx, jobID, &lastID, out) {
		return
	}

	for {
		job, err := f.jobs.GetJob(ctx, tenantID, jobID)
		if err != nil {
			slog.Warn("logfanout: checking job state", "job_id", jobID, "error", err)
			return
		}
		if job.ExecutionState.IsTerminal() {
			// One last poll picks up events appended between the previous
			// poll and the state change.
			if !f.pollOnce(ctx, jobID, &lastID, out) {
				return
			}
			// Terminal delivery is mandatory: block until the subscriber
			// reads it or gives up via ctx cancellation.
			select {
			case out <- Frame{Type: FrameComplete, State: job.ExecutionState}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !f.pollOnce(ctx, jobID, &lastID, out) {
				return
			}
		}
	}
}

// pollOnce fetches events after lastID and pushes them, advancing
// lastID. Returns false if ctx was cancelled or the read failed.
func (f *FanOut) pollOnce(ctx context.Context, jobID string, lastID *int64, out chan Frame) bool {
	events, err := f.events.EventsSince(ctx, jobID, *lastID)
	if err != nil {
		slog.Warn("logfanout: reading events", "job_id", jobID, "error", err)
		return false
	}
	for _, e := range events {
		sendDroppingOldest(out, Frame{Type: FrameEvent, Event: e})
		*lastID = e.EventID
	}
	return ctx.Err() == nil
}

// sendDroppingOldest pushes f onto out, discarding the oldest buffered
// frame if out is full rather than blocking — a slow subscriber must
// never stall the poll loop for other subscribers or the engine.
func sendDroppingOldest(out chan Frame, f Frame) {
	select {
	case out <- f:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- f:
	default:
	}
}
