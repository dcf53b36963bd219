package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "focuslog/internal/platform/errors"
)

const DefaultWindow = 10 * time.Second

type Kind string

const (
	KindProgram Kind = "program"
	KindDomain  Kind = "domain"
)

func (k Kind) Validate() error {
	switch k {
	case KindProgram, KindDomain:
		return nil
	default:
		return fmt.Errorf("%w: unknown activity kind %q", apperrors.ErrInvalidInput, string(k))
	}
}

// Family selects one of the three storage backends.
type Family string

const (
	FamilyProgram Family = "program"
	FamilyDomain  Family = "domain"
	FamilyVideo   Family = "video"
)

func (f Family) Validate() error {
	switch f {
	case FamilyProgram, FamilyDomain, FamilyVideo:
		return nil
	default:
		return fmt.Errorf("%w: unknown family %q", apperrors.ErrInvalidInput, string(f))
	}
}

type PlayerState string

const (
	PlayerPlaying PlayerState = "PLAYING"
	PlayerPaused  PlayerState = "PAUSED"
)

func (s PlayerState) Validate() error {
	switch s {
	case PlayerPlaying, PlayerPaused:
		return nil
	default:
		return fmt.Errorf("%w: unknown player state %q", apperrors.ErrInvalidInput, string(s))
	}
}

type VideoInfo struct {
	Platform    string
	MediaID     string
	Title       string
	ChannelName string
	PlayerState PlayerState
}

// Identity is the (platform, media_id) aggregation key.
func (v VideoInfo) Identity() string {
	return strings.ToLower(strings.TrimSpace(v.Platform)) + ":" + strings.TrimSpace(v.MediaID)
}

func (v VideoInfo) Validate() error {
	if strings.TrimSpace(v.Platform) == "" {
		return fmt.Errorf("%w: video platform is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(v.MediaID) == "" {
		return fmt.Errorf("%w: video media id is required", apperrors.ErrInvalidInput)
	}
	return nil
}

type Activity struct {
	SessionID   string
	Kind        Kind
	Identity    string
	DisplayName string
	Detail      string
	StartTime   time.Time
	Productive  bool
	Video       *VideoInfo
	Ledger      *Ledger
}

func NewProgram(sessionID, exePath, processName, windowTitle string, start time.Time) Activity {
	name := strings.TrimSpace(processName)
	if name == "" {
		name = filepath.Base(exePath)
	}
	return Activity{
		SessionID:   sessionID,
		Kind:        KindProgram,
		Identity:    exePath,
		DisplayName: name,
		Detail:      windowTitle,
		StartTime:   start,
		Ledger:      NewLedger(DefaultWindow),
	}
}

func NewBrowserDomain(sessionID, domain, tabTitle string, start time.Time) Activity {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return Activity{
		SessionID:   sessionID,
		Kind:        KindDomain,
		Identity:    domain,
		DisplayName: domain,
		Detail:      tabTitle,
		StartTime:   start,
		Ledger:      NewLedger(DefaultWindow),
	}
}

// WithVideo layers a video onto a program or browser-domain activity.
func (a Activity) WithVideo(video VideoInfo) Activity {
	v := video
	a.Video = &v
	return a
}

func (a Activity) IsVideo() bool {
	return a.Video != nil
}

// BaseFamily is the family of the program or domain part of the activity.
func (a Activity) BaseFamily() Family {
	if a.Kind == KindProgram {
		return FamilyProgram
	}
	return FamilyDomain
}

// Families lists every store the activity is accounted in. Videos count twice on purpose.
func (a Activity) Families() []Family {
	if a.IsVideo() {
		return []Family{a.BaseFamily(), FamilyVideo}
	}
	return []Family{a.BaseFamily()}
}

// IdentityFor returns the aggregation key of the activity within family.
func (a Activity) IdentityFor(family Family) string {
	if family == FamilyVideo && a.Video != nil {
		return a.Video.Identity()
	}
	return a.Identity
}

func (a Activity) Validate() error {
	if err := a.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Identity) == "" {
		return fmt.Errorf("%w: identity is required", apperrors.ErrInvalidInput)
	}
	if a.StartTime.IsZero() {
		return fmt.Errorf("%w: start time is required", apperrors.ErrInvalidInput)
	}
	if a.Video != nil {
		return a.Video.Validate()
	}
	return nil
}

// Snapshot is a deep value copy; later ledger mutations on a do not reach it.
func (a Activity) Snapshot() Activity {
	out := a
	if a.Video != nil {
		v := *a.Video
		out.Video = &v
	}
	if a.Ledger != nil {
		out.Ledger = a.Ledger.Clone()
	}
	return out
}

// ToCompleted closes the activity at end. It does not mutate a.
func (a Activity) ToCompleted(end time.Time) (Completed, error) {
	if end.Before(a.StartTime) {
		return Completed{}, fmt.Errorf("%w: %s ends at %s before its start %s", apperrors.ErrNegativeDuration, a.Identity, end.Format(time.RFC3339), a.StartTime.Format(time.RFC3339))
	}
	return Completed{
		Activity: a.Snapshot(),
		EndTime:  end,
		Duration: end.Sub(a.StartTime),
	}, nil
}

type Completed struct {
	Activity
	EndTime  time.Time
	Duration time.Duration
}

func (c Completed) DurationSeconds() int64 {
	return int64(c.Duration / time.Second)
}

// DayKey is the gathering date of t, the local calendar day in t's own zone.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
