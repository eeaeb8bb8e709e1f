package recall

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when the provider does not know an agent.
var ErrNotFound = errors.New("recording agent not found")

// APIError is returned for non-2xx provider responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recall api returned status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// State is the lifecycle state of a recording agent as observed from the
// provider.
type State string

const (
	StateUnknown   State = "unknown"
	StateCreated   State = "created"
	StateJoined    State = "joined"
	StateRecording State = "recording"
	StateEnded     State = "ended"
	StateLeft      State = "left"
	StateFailed    State = "failed"
)

// ParseState maps a provider status code to a State.
func ParseState(code string) State {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "":
		return StateUnknown
	case "ready", "joining_call", "in_waiting_room":
		return StateCreated
	case "joined", "in_meeting", "in_call_not_recording":
		return StateJoined
	case "recording", "in_call_recording":
		return StateRecording
	case "ended", "call_ended", "done":
		return StateEnded
	case "left":
		return StateLeft
	case "fatal":
		return StateFailed
	default:
		return StateUnknown
	}
}

// InMeeting reports whether the agent is already in the call. A join command
// for such an agent is redundant.
func (s State) InMeeting() bool {
	return s == StateJoined || s == StateRecording
}

// Terminal reports whether the agent has finished with its meeting and its
// output can be harvested.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateLeft
}

func (s State) String() string {
	return string(s)
}

// Status is the derived view of an agent.
type Status struct {
	AgentID             string
	State               State
	Code                string
	TranscriptAvailable bool
	RecordingAvailable  bool
	MeetingURL          string
}

// Participant is one attendee reported by an agent.
type Participant struct {
	ID    any    `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateAgentRequest describes the agent to create.
type CreateAgentRequest struct {
	MeetingURL string
	StartTime  time.Time
	Name       string
}

// Agent is the provider's reply to a creation request.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"bot_name,omitempty"`
}

// AgentData holds the fields of the raw agent document that are used.
type AgentData struct {
	ID            string         `json:"id"`
	MeetingURL    any            `json:"meeting_url"`
	StatusChanges []StatusChange `json:"status_changes"`
	Recordings    []Recording    `json:"recordings"`
	RecordingURL  string         `json:"recording_url"`
	VideoURL      string         `json:"video_url"`
	Attendees     []Participant  `json:"attendees"`
}

// StatusChange is one entry of an agent's status history.
type StatusChange struct {
	Code      string `json:"code"`
	SubCode   string `json:"sub_code,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Recording is one recording produced by an agent.
type Recording struct {
	ID             string         `json:"id"`
	Status         CodeStatus     `json:"status"`
	MediaShortcuts MediaShortcuts `json:"media_shortcuts"`
}

// MediaShortcuts points to downloadable artifacts of a recording.
type MediaShortcuts struct {
	Transcript *MediaArtifact `json:"transcript"`
	VideoMixed *MediaArtifact `json:"video_mixed"`
}

// MediaArtifact is one downloadable artifact.
type MediaArtifact struct {
	Status CodeStatus `json:"status"`
	Data   struct {
		DownloadURL string `json:"download_url"`
	} `json:"data"`
}

// CodeStatus wraps a status code.
type CodeStatus struct {
	Code string `json:"code"`
}

const statusDone = "done"

// LastStatusCode returns the code of the latest status change, or "".
func (d *AgentData) LastStatusCode() string {
	if len(d.StatusChanges) == 0 {
		return ""
	}
	return d.StatusChanges[len(d.StatusChanges)-1].Code
}

func (d *AgentData) firstRecording() *Recording {
	if len(d.Recordings) == 0 {
		return nil
	}
	return &d.Recordings[0]
}

// RecordingDone reports whether the first recording has finished processing.
func (d *AgentData) RecordingDone() bool {
	rec := d.firstRecording()
	return rec != nil && rec.Status.Code == statusDone
}

// TranscriptURL returns the transcript download URL when the transcript is
// ready.
func (d *AgentData) TranscriptURL() (string, bool) {
	rec := d.firstRecording()
	if rec == nil || rec.MediaShortcuts.Transcript == nil {
		return "", false
	}
	t := rec.MediaShortcuts.Transcript
	if t.Status.Code != statusDone || t.Data.DownloadURL == "" {
		return "", false
	}
	return t.Data.DownloadURL, true
}

// BestRecordingURL returns the best recording reference: the mixed video when ready,
// else the legacy recording_url or video_url fields.
func (d *AgentData) BestRecordingURL() (string, bool) {
	if rec := d.firstRecording(); rec != nil && rec.MediaShortcuts.VideoMixed != nil {
		v := rec.MediaShortcuts.VideoMixed
		if v.Status.Code == statusDone && v.Data.DownloadURL != "" {
			return v.Data.DownloadURL, true
		}
	}
	if d.RecordingURL != "" {
		return d.RecordingURL, true
	}
	if d.VideoURL != "" {
		return d.VideoURL, true
	}
	return "", false
}

// Status derives the agent's Status.
func (d *AgentData) Status() Status {
	code := d.LastStatusCode()
	recordingDone := d.RecordingDone()
	_, transcriptReady := d.TranscriptURL()

	meetingURL, _ := d.MeetingURL.(string)
	return Status{
		AgentID:             d.ID,
		State:               ParseState(code),
		Code:                code,
		RecordingAvailable:  recordingDone,
		TranscriptAvailable: recordingDone && transcriptReady,
		MeetingURL:          meetingURL,
	}
}

// BotName builds the agent display name from an event title and id. The
// title is cut to 50 characters.
func BotName(title string, eventID uint) string {
	runes := []rune(title)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return fmt.Sprintf("%s-%d", string(runes), eventID)
}
