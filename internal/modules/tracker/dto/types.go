package dto

import (
	"fmt"
	"strings"
	"time"

	apperrors "focuslog/internal/platform/errors"
)

type VideoInfo struct {
	Platform    string `json:"platform"`
	MediaID     string `json:"media_id"`
	Title       string `json:"title,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
	PlayerState string `json:"player_state,omitempty"`
}

func (v *VideoInfo) Validate() error {
	if v == nil {
		return nil
	}
	if strings.TrimSpace(v.Platform) == "" {
		return fmt.Errorf("%w: video platform is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(v.MediaID) == "" {
		return fmt.Errorf("%w: video media_id is required", apperrors.ErrInvalidInput)
	}
	switch v.PlayerState {
	case "", "PLAYING", "PAUSED":
		return nil
	default:
		return fmt.Errorf("%w: unknown player_state %q", apperrors.ErrInvalidInput, v.PlayerState)
	}
}

type ProgramFocusEvent struct {
	ExePath     string     `json:"exe_path"`
	ProcessName string     `json:"process_name"`
	WindowTitle string     `json:"window_title"`
	Detail      string     `json:"detail,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	Video       *VideoInfo `json:"video,omitempty"`
}

func (e ProgramFocusEvent) Validate() error {
	if strings.TrimSpace(e.ExePath) == "" {
		return fmt.Errorf("%w: exe_path is required", apperrors.ErrInvalidInput)
	}
	if e.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", apperrors.ErrInvalidInput)
	}
	return e.Video.Validate()
}

type TabFocusEvent struct {
	Domain    string     `json:"domain"`
	TabTitle  string     `json:"tab_title"`
	StartTime time.Time  `json:"start_time"`
	Video     *VideoInfo `json:"video,omitempty"`
}

func (e TabFocusEvent) Validate() error {
	if strings.TrimSpace(e.Domain) == "" {
		return fmt.Errorf("%w: domain is required", apperrors.ErrInvalidInput)
	}
	if e.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", apperrors.ErrInvalidInput)
	}
	return e.Video.Validate()
}

type PlayerStateEvent struct {
	TabTitle  string    `json:"tab_title"`
	EventTime time.Time `json:"event_time"`
	Video     VideoInfo `json:"video"`
}

func (e PlayerStateEvent) Validate() error {
	if e.EventTime.IsZero() {
		return fmt.Errorf("%w: event_time is required", apperrors.ErrInvalidInput)
	}
	if err := e.Video.Validate(); err != nil {
		return err
	}
	if e.Video.PlayerState == "" {
		return fmt.Errorf("%w: player_state is required", apperrors.ErrInvalidInput)
	}
	return nil
}

type HeartbeatInput struct {
	Timestamp time.Time `json:"timestamp"`
}

func (h HeartbeatInput) Validate() error {
	if h.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", apperrors.ErrInvalidInput)
	}
	return nil
}

type EventKind string

const (
	EventProgram EventKind = "program"
	EventTab     EventKind = "tab"
	EventPlayer  EventKind = "player"
)

// Event carries exactly one of the three focus events to the single consumer.
type Event struct {
	Kind    EventKind
	Program *ProgramFocusEvent
	Tab     *TabFocusEvent
	Player  *PlayerStateEvent
}

func ProgramEvent(e ProgramFocusEvent) Event { return Event{Kind: EventProgram, Program: &e} }
func TabEvent(e TabFocusEvent) Event         { return Event{Kind: EventTab, Tab: &e} }
func PlayerEvent(e PlayerStateEvent) Event   { return Event{Kind: EventPlayer, Player: &e} }

func (e Event) Validate() error {
	switch e.Kind {
	case EventProgram:
		if e.Program == nil {
			return fmt.Errorf("%w: program event is empty", apperrors.ErrInvalidInput)
		}
		return e.Program.Validate()
	case EventTab:
		if e.Tab == nil {
			return fmt.Errorf("%w: tab event is empty", apperrors.ErrInvalidInput)
		}
		return e.Tab.Validate()
	case EventPlayer:
		if e.Player == nil {
			return fmt.Errorf("%w: player event is empty", apperrors.ErrInvalidInput)
		}
		return e.Player.Validate()
	default:
		return fmt.Errorf("%w: unknown event kind %q", apperrors.ErrInvalidInput, string(e.Kind))
	}
}

type DayQuery struct {
	Family string
	Day    string
}

func (q DayQuery) Validate() error {
	switch q.Family {
	case "program", "domain", "video":
	default:
		return fmt.Errorf("%w: unknown family %q", apperrors.ErrInvalidInput, q.Family)
	}
	if _, err := time.Parse("2006-01-02", q.Day); err != nil {
		return fmt.Errorf("%w: day must be YYYY-MM-DD: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}

type SummaryOutput struct {
	Family     string  `json:"family"`
	Identity   string  `json:"identity"`
	Name       string  `json:"name"`
	Platform   string  `json:"platform,omitempty"`
	MediaID    string  `json:"media_id,omitempty"`
	Productive bool    `json:"productive"`
	Day        string  `json:"day"`
	HoursSpent float64 `json:"hours_spent"`
}

type SessionLogOutput struct {
	Family          string    `json:"family"`
	SessionID       string    `json:"session_id"`
	Identity        string    `json:"identity"`
	Name            string    `json:"name"`
	Detail          string    `json:"detail,omitempty"`
	Platform        string    `json:"platform,omitempty"`
	MediaID         string    `json:"media_id,omitempty"`
	Productive      bool      `json:"productive"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	EndLocal        string    `json:"end_local"`
	DurationSeconds int64     `json:"duration_seconds"`
	Day             string    `json:"day"`
}

type MysteryOutput struct {
	Platform  string    `json:"platform"`
	MediaID   string    `json:"media_id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type CurrentOutput struct {
	Active          bool       `json:"active"`
	SessionID       string     `json:"session_id,omitempty"`
	Kind            string     `json:"kind,omitempty"`
	Identity        string     `json:"identity,omitempty"`
	Name            string     `json:"name,omitempty"`
	Detail          string     `json:"detail,omitempty"`
	Productive      bool       `json:"productive"`
	StartTime       time.Time  `json:"start_time,omitempty"`
	Video           *VideoInfo `json:"video,omitempty"`
	RecordedSeconds int64      `json:"recorded_seconds"`
}
