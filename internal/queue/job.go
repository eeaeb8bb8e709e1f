package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names the work a Job asks for.
type Kind string

const (
	KindScheduleJoins Kind = "schedule_joins"
	KindPollCompleted Kind = "poll_completed"
	KindSyncCalendar  Kind = "sync_calendar"
	KindCreateAgent   Kind = "create_agent"
)

// Valid reports whether k is a known job kind.
func (k Kind) Valid() bool {
	switch k {
	case KindScheduleJoins, KindPollCompleted, KindSyncCalendar, KindCreateAgent:
		return true
	}
	return false
}

// ParseKind parses a job kind. The short sweep names "joins",
// "completions" and "sync" are accepted as well.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "joins":
		return KindScheduleJoins, nil
	case "completions":
		return KindPollCompleted, nil
	case "sync":
		return KindSyncCalendar, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown job kind %q", s)
	}
	return k, nil
}

// Job is one unit of work passed through a Broker.
//
// UserID scopes a sweep to a single user; zero means all users. EventID is
// only used by KindCreateAgent.
type Job struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	UserID      uint      `json:"user_id,omitempty"`
	EventID     uint      `json:"event_id,omitempty"`
	CreateBots  bool      `json:"create_bots,omitempty"`
	LeadMinutes int       `json:"lead_minutes,omitempty"`
	Attempt     int       `json:"attempt"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NewJob returns a first-attempt job of the given kind with a fresh id.
func NewJob(kind Kind) Job {
	return Job{
		ID:         uuid.New(),
		Kind:       kind,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Retry returns a copy of j for the next attempt.
func (j Job) Retry() Job {
	next := j
	next.ID = uuid.New()
	next.Attempt = j.Attempt + 1
	next.EnqueuedAt = time.Now().UTC()
	return next
}

func (j Job) String() string {
	return fmt.Sprintf("%s[%s attempt=%d]", j.Kind, j.ID, j.Attempt)
}

func encodeJob(j Job) ([]byte, error) {
	return json.Marshal(j)
}

func decodeJob(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if !j.Kind.Valid() {
		return Job{}, fmt.Errorf("failed to decode job: unknown kind %q", j.Kind)
	}
	return j, nil
}
