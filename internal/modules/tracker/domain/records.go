package domain

import "time"

// SessionLog is one row per session. EndTime moves forward while the session is
// live and is overwritten once on finalize.
type SessionLog struct {
	ID              int64
	Family          Family
	SessionID       string
	Identity        string
	Name            string
	Detail          string
	Platform        string
	MediaID         string
	Productive      bool
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int64
	GatheringDate   string
	CreatedAt       time.Time
}

// EndLocal renders EndTime in the zone of the session start.
func (l SessionLog) EndLocal() string {
	return l.EndTime.In(l.StartTime.Location()).Format("2006-01-02T15:04:05")
}

// DailySummary is unique per (family, identity, gathering date).
type DailySummary struct {
	ID            int64
	Family        Family
	Identity      string
	Name          string
	Platform      string
	MediaID       string
	Productive    bool
	GatheringDate string
	HoursSpent    float64
	CreatedAt     time.Time
}

type MysteryMedia struct {
	Platform       string
	MediaID        string
	FirstSeen      time.Time
	LastSeen       time.Time
	DiscoveredName string
}

// NewSessionLog seeds the row written when a session opens: end equals start and
// no duration yet.
func NewSessionLog(family Family, a Activity, name string, createdAt time.Time) SessionLog {
	log := SessionLog{
		Family:        family,
		SessionID:     a.SessionID,
		Identity:      a.IdentityFor(family),
		Name:          name,
		Detail:        a.Detail,
		Productive:    a.Productive,
		StartTime:     a.StartTime,
		EndTime:       a.StartTime,
		GatheringDate: DayKey(a.StartTime),
		CreatedAt:     createdAt,
	}
	if family == FamilyVideo && a.Video != nil {
		log.Platform = a.Video.Platform
		log.MediaID = a.Video.MediaID
		log.Detail = a.Video.ChannelName
	}
	return log
}

func NewDailySummary(family Family, a Activity, name string, createdAt time.Time) DailySummary {
	summary := DailySummary{
		Family:        family,
		Identity:      a.IdentityFor(family),
		Name:          name,
		Productive:    a.Productive,
		GatheringDate: DayKey(a.StartTime),
		CreatedAt:     createdAt,
	}
	if family == FamilyVideo && a.Video != nil {
		summary.Platform = a.Video.Platform
		summary.MediaID = a.Video.MediaID
	}
	return summary
}

// HoursDelta converts seconds of accrued time into summary hours.
func HoursDelta(seconds int64) float64 {
	return float64(seconds) / 3600
}

const MaxHoursPerDay = 24.0
