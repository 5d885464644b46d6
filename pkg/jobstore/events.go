package jobstore

import (
	"context"
	"fmt"
)

// AppendEvent appends a log line to a job's event stream. event_time is
// caller-supplied (unix millis) since this package's tests stamp time
// deterministically rather than relying on the database clock.
func (s *Store) AppendEvent(ctx context.Context, jobID, message, severity string, eventTime int64) (*Event, error) {
	if severity == "" {
		severity = SeverityInfo
	}
	const q = `
		INSERT INTO events (job_id, message, severity, event_time)
		VALUES ($1, $2, $3, $4)
		RETURNING event_id`
	e := Event{JobID: jobID, Message: message, Severity: severity, EventTime: eventTime}
	if err := s.db.QueryRowContext(ctx, q, jobID, message, severity, eventTime).Scan(&e.EventID); err != nil {
		return nil, fmt.Errorf("jobstore: appending event: %w", err)
	}
	return &e, nil
}

// EventsSince returns every event for jobID with event_id greater than
// afterID, ordered by (event_time, event_id) — the replay contract the
// live log stream uses to catch a subscriber up before tailing new
// events.
func (s *Store) EventsSince(ctx context.Context, jobID string, afterID int64) ([]Event, error) {
	const q = `
		SELECT event_id, job_id, message, severity, event_time
		FROM events WHERE job_id = $1 AND event_id > $2
		ORDER BY event_time ASC, event_id ASC`
	rows, err := s.db.QueryContext(ctx, q, jobID, afterID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: fetching events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.EventID, &e.JobID, &e.Message, &e.Severity, &e.EventTime); err != nil {
			return nil, fmt.Errorf("jobstore: scanning event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllEvents returns the full ordered event log for jobID.
func (s *Store) AllEvents(ctx context.Context, jobID string) ([]Event, error) {
	return s.EventsSince(ctx, jobID, 0)
}
