package service

import (
	"fmt"
	"strings"
	"time"

	"focuslog/internal/modules/tracker/domain"
	"focuslog/internal/modules/tracker/dto"
	trackerout "focuslog/internal/modules/tracker/port/out"
	apperrors "focuslog/internal/platform/errors"
	"focuslog/internal/platform/id"
)

var platformDomains = map[string]string{
	"youtube": "youtube.com",
	"netflix": "netflix.com",
}

// ActivityFactory turns validated input events into live sessions in the user zone.
type ActivityFactory struct {
	ids        id.Generator
	classifier trackerout.Classifier
	location   *time.Location
	window     time.Duration
}

func NewActivityFactory(ids id.Generator, classifier trackerout.Classifier, location *time.Location, window time.Duration) *ActivityFactory {
	if location == nil {
		location = time.Local
	}
	return &ActivityFactory{ids: ids, classifier: classifier, location: location, window: window}
}

func (f *ActivityFactory) FromEvent(event dto.Event) (domain.Activity, error) {
	if err := event.Validate(); err != nil {
		return domain.Activity{}, err
	}
	switch event.Kind {
	case dto.EventProgram:
		return f.FromProgram(*event.Program)
	case dto.EventTab:
		return f.FromTab(*event.Tab)
	case dto.EventPlayer:
		return f.FromPlayer(*event.Player)
	default:
		return domain.Activity{}, fmt.Errorf("%w: unknown event kind %q", apperrors.ErrInvalidInput, string(event.Kind))
	}
}

func (f *ActivityFactory) FromProgram(event dto.ProgramFocusEvent) (domain.Activity, error) {
	if err := event.Validate(); err != nil {
		return domain.Activity{}, err
	}
	detail := event.Detail
	if detail == "" {
		detail = event.WindowTitle
	}
	a := domain.NewProgram(f.ids.New(), event.ExePath, event.ProcessName, detail, event.StartTime.In(f.location))
	if event.Video != nil {
		a = a.WithVideo(toVideo(*event.Video))
	}
	return f.finish(a), nil
}

func (f *ActivityFactory) FromTab(event dto.TabFocusEvent) (domain.Activity, error) {
	if err := event.Validate(); err != nil {
		return domain.Activity{}, err
	}
	a := domain.NewBrowserDomain(f.ids.New(), event.Domain, event.TabTitle, event.StartTime.In(f.location))
	if event.Video != nil {
		a = a.WithVideo(toVideo(*event.Video))
	}
	return f.finish(a), nil
}

// FromPlayer maps PLAYING to a video on the platform's domain and PAUSED to the bare domain.
func (f *ActivityFactory) FromPlayer(event dto.PlayerStateEvent) (domain.Activity, error) {
	if err := event.Validate(); err != nil {
		return domain.Activity{}, err
	}
	video := toVideo(event.Video)
	a := domain.NewBrowserDomain(f.ids.New(), PlatformDomain(video.Platform), event.TabTitle, event.EventTime.In(f.location))
	if video.PlayerState == domain.PlayerPlaying {
		a = a.WithVideo(video)
	}
	return f.finish(a), nil
}

func (f *ActivityFactory) finish(a domain.Activity) domain.Activity {
	a.Ledger = domain.NewLedger(f.window)
	if f.classifier != nil {
		a.Productive = f.classifier.IsProductive(a.Kind, a.Identity)
	}
	return a
}

// PlatformDomain returns the site a video platform plays on.
func PlatformDomain(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if d, ok := platformDomains[p]; ok {
		return d
	}
	return p
}

func toVideo(v dto.VideoInfo) domain.VideoInfo {
	state := domain.PlayerState(v.PlayerState)
	if state == "" {
		state = domain.PlayerPlaying
	}
	return domain.VideoInfo{
		Platform:    strings.ToLower(strings.TrimSpace(v.Platform)),
		MediaID:     strings.TrimSpace(v.MediaID),
		Title:       strings.TrimSpace(v.Title),
		ChannelName: v.ChannelName,
		PlayerState: state,
	}
}
